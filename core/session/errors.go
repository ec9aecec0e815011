package session

// Error is a rejection reported by the coordinator. The code is stable and
// ends up as err_code in handler summaries.
type Error struct {
	code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code returns the machine-readable reason.
func (e *Error) Code() string { return e.code }

var (
	// ErrQuotaExceeded rejects a request once the user used up the hourly window.
	ErrQuotaExceeded = &Error{code: "quota_exceeded", msg: "session: request quota exceeded"}
	// ErrQueryTooShort rejects search queries under MinQueryLen runes.
	ErrQueryTooShort = &Error{code: "query_too_short", msg: "session: query too short"}
	// ErrPaginationNotFound means neither the message nor the identity holds results.
	ErrPaginationNotFound = &Error{code: "pagination_not_found", msg: "session: no results to paginate"}
	// ErrDuplicateJob is returned with a nil guard when the same download is running.
	ErrDuplicateJob = &Error{code: "duplicate_job", msg: "session: download already in progress"}
)
