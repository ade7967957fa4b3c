package models

// Waiver time-bound exception for one rule
type Waiver struct {
	Rule     string `yaml:"rule" json:"rule"`
	Scope    string `yaml:"scope" json:"scope"`
	Reason   string `yaml:"reason" json:"reason"`
	TTL      string `yaml:"ttl" json:"ttl"`
	Approver string `yaml:"approver" json:"approver"`
	Evidence string `yaml:"evidence" json:"evidence"`
}
