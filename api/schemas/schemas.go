package schemas

// Role names the semantic purpose of a form field the engine looks for.
type Role string

const (
	RoleCardNumber   Role = "cardNumber"
	RoleEmail        Role = "email"
	RolePhone        Role = "phone"
	RoleAmount       Role = "amount"
	RoleNetworkRadio Role = "networkRadio"
)

// Roles lists every role in resolution order.
var Roles = []Role{RoleCardNumber, RoleEmail, RolePhone, RoleAmount, RoleNetworkRadio}

// FormLayout is the card-number layout variant detected on the current render.
// It is derived per run and never persisted.
type FormLayout string

const (
	LayoutSingleField FormLayout = "SINGLE_FIELD"
	LayoutSplitBoxes  FormLayout = "SPLIT_BOXES"
)

// FillState is a state of the layout-aware filler.
type FillState string

const (
	StateScanning         FillState = "SCANNING"
	StateSelectingNetwork FillState = "SELECTING_NETWORK"
	StateFillingNumber    FillState = "FILLING_NUMBER"
	StateFillingContact   FillState = "FILLING_CONTACT"
	StateDone             FillState = "DONE"
)

// Classification is the outcome of classifying an outbound navigation.
type Classification string

const (
	ClassExternalIntent Classification = "EXTERNAL_INTENT"
	ClassInPage         Classification = "IN_PAGE"
)

// MessageKind tags a diagnostics message travelling from content to host.
type MessageKind string

const (
	KindLog MessageKind = "LOG"
)

// ViewState is the screen the presentation layer renders.
type ViewState string

const (
	ViewHome     ViewState = "HOME"
	ViewAdd      ViewState = "ADD"
	ViewPay      ViewState = "PAY"
	ViewInsights ViewState = "INSIGHTS"
)
