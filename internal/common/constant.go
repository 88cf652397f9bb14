package common

const (
	// AuthorizationHeaderName carries the bearer token on HTTP requests.
	AuthorizationHeaderName = "Authorization"

	// AccessTokenHeaderName is an alternative header carrying the raw
	// access token, accepted when Authorization is absent.
	AccessTokenHeaderName = "access_token"

	// TraceHeaderName is echoed back on every HTTP response.
	TraceHeaderName = "X-Trace-Id"
)

// Sequence names known to the sequences table.
const (
	SequenceSaleID   = "sale_id"
	SequenceBranchNo = "branch_no"
)
