package models

// GeneralSettings - общие настройки платформы, используемые при расчете
// цены закупки и при вычислении статуса по датам.
type GeneralSettings struct {
	VatPercentage         float64 `json:"vatPercentage"`
	PlatformFeePercentage float64 `json:"platformFeePercentage"`
	MinDocumentPrice      float64 `json:"minDocumentPrice"`
	MaxDocumentPrice      float64 `json:"maxDocumentPrice"`
	StoppingPeriodDays    int     `json:"stoppingPeriodDays"`
}
