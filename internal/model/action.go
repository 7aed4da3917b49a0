package model

// ActionType tags the variant of a backend-issued Action.
type ActionType string

const (
	ActionRedirect       ActionType = "redirect"
	ActionNativeRedirect ActionType = "nativeRedirect"
	ActionAwait          ActionType = "await"
	ActionQRCode         ActionType = "qrCode"
	ActionSDK            ActionType = "sdk"
	ActionVoucher        ActionType = "voucher"
)

// Payment method types referenced by the action handlers and components.
const (
	MethodACH     = "ach"
	MethodBlik    = "blik"
	MethodPix     = "pix"
	MethodPayNow  = "paynow"
	MethodUPIQR   = "upi_qr"
	MethodTwint   = "twint"
	MethodMBWay   = "mbway"
	MethodIdeal   = "ideal"
	MethodUnknown = "unknown"
)

// Action is a follow-up instruction returned by the backend. Only the fields relevant
// to its Type are populated.
type Action struct {
	Type               ActionType     `json:"type"`
	PaymentMethodType  string         `json:"paymentMethodType,omitempty"`
	PaymentData        string         `json:"paymentData,omitempty"`
	URL                string         `json:"url,omitempty"`
	Method             string         `json:"method,omitempty"`
	NativeRedirectData string         `json:"nativeRedirectData,omitempty"`
	QRCodeData         string         `json:"qrCodeData,omitempty"`
	SDKData            map[string]any `json:"sdkData,omitempty"`
}
