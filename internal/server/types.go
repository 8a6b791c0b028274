package server

// SendResponse is returned after a submission attempt.
type SendResponse struct {
	Status   string         `json:"status"`
	UUID     string         `json:"uuid,omitempty"`
	QR       string         `json:"qr,omitempty"`
	Response map[string]any `json:"response"`
}

// QRResponse is returned after attaching a QR image.
type QRResponse struct {
	FileURL string `json:"file_url"`
}
