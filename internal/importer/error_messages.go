package importer

// error_messages.go maps technical errors to user-facing messages with
// support codes. When users hit an error they can quote the code to support
// staff for faster diagnosis.
//
// Error codes are grouped by category:
//
//	FILE001 - File too large
//	FILE002 - Wrong file type
//	FILE003 - Invalid CSV structure
//	FILE004 - Missing required columns
//	FILE005 - No usable rows
//
//	SES001  - Session not found or expired
//	SES002  - Session already resolved
//	SES003  - Too many concurrent uploads
//
//	LED001  - Ledger unavailable
//
//	ERR000  - Unclassified failure

import (
	"errors"
	"strings"
)

// UserMessage is the client-facing rendering of an error.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern maps a substring of the technical error to a user message.
// The first matching pattern wins, so specific patterns come first.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "exceeds",
		msg: UserMessage{
			Message: "The file is too large",
			Action:  "Split the file into smaller chunks and upload them separately",
			Code:    "FILE001",
		},
	},
	{
		pattern: "only csv files",
		msg: UserMessage{
			Message: "Only CSV files are supported",
			Action:  "Export your data as a .csv file and try again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The file is not a valid CSV",
			Action:  "Ensure the file is comma-separated with consistent columns",
			Code:    "FILE003",
		},
	},
	{
		pattern: "missing required columns",
		msg: UserMessage{
			Message: "Required columns are missing",
			Action:  "The file needs Date, Description, and Amount columns",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no valid transactions",
		msg: UserMessage{
			Message: "No rows could be read as transactions",
			Action:  "Check the date and amount formats in your file",
			Code:    "FILE005",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The file has no data rows",
			Action:  "Upload a CSV with at least one transaction below the header",
			Code:    "FILE005",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV with at least one transaction",
			Code:    "FILE005",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "Something went wrong processing your request",
	Action:  "Please try again; contact support if the problem persists",
	Code:    "ERR000",
}

// MapError converts any pipeline error to a user-facing message. Sentinel
// errors are matched first, then validation reasons by pattern.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return UserMessage{
			Message: "Upload session not found or expired",
			Action:  "Upload the file again to start a new review",
			Code:    "SES001",
		}
	case errors.Is(err, ErrConflict):
		return UserMessage{
			Message: "This upload was already confirmed or cancelled",
			Action:  "Check the session status before retrying",
			Code:    "SES002",
		}
	case errors.Is(err, ErrTooManyUploads):
		return UserMessage{
			Message: "Too many uploads are being processed right now",
			Action:  "Wait a moment and try again",
			Code:    "SES003",
		}
	case errors.Is(err, ErrLedgerUnavailable):
		return UserMessage{
			Message: "The ledger is temporarily unavailable",
			Action:  "Your staged upload is intact; retry the confirm shortly",
			Code:    "LED001",
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}
