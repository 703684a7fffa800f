package handler

const (
	errInternalServer    = "Internal server error"
	errPostNotFound      = "Post not found"
	errDuplicatePost     = "Post already exists"
	errSessionIncomplete = "Session has no complete date/time selection"
	errUploadsDisabled   = "Uploads are not configured"
)
