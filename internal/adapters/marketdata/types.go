package marketdata

// marketDTO is the wire shape of one market. Fields are validated on
// ingress; see mapping.go.
type marketDTO struct {
	ID                string   `json:"id"`
	Question          string   `json:"question"`
	Category          string   `json:"category"`
	Price             float64  `json:"price"`
	Liquidity         float64  `json:"liquidity"`
	ClosesAt          string   `json:"closesAt"`
	ResolvedAt        string   `json:"resolvedAt,omitempty"`
	ResolutionOutcome *bool    `json:"resolutionOutcome,omitempty"`
}
