package models

// SellerConfig is the seller display info the renderer puts on receipts.
type SellerConfig struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
	Footer  string `json:"footer,omitempty"`
}

// ReceiptTemplate is an optional custom section layout for one receipt type.
type ReceiptTemplate struct {
	HeaderLines []string `json:"headerLines,omitempty"`
	FooterLines []string `json:"footerLines,omitempty"`
	ShowPrices  bool     `json:"showPrices"`
}

// Receipt is a rendered receipt in both forms the engine needs: raw printer
// command bytes for the wireless path and an HTML document for the browser
// fallback.
type Receipt struct {
	Commands []byte
	HTML     string
}
