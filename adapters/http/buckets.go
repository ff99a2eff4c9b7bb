package authhttp

// Bucket names used by dialog endpoints.
const (
	RLDialogGet             = "dialog_get"
	RLDialogIdPVerification = "dialog_idp_verification"
	RLDialogReturnTo        = "dialog_return_to"
)
