package idp

// RequestPattern identifies how the parameters of an authorization request
// were delivered. It decides which context creator runs and never changes
// after classification.
type RequestPattern string

const (
	RequestPatternNormal           RequestPattern = "NORMAL"
	RequestPatternRequestObject    RequestPattern = "REQUEST_OBJECT"
	RequestPatternRequestURI       RequestPattern = "REQUEST_URI"
	RequestPatternPushedRequestURI RequestPattern = "PUSHED_REQUEST_URI"
)

// ClassifyRequestPattern inspects only parameter presence. The pushed
// pattern is selected by the endpoint that received the request, not here.
func ClassifyRequestPattern(params RequestParameters) RequestPattern {
	if params.Has(ParamRequest) {
		return RequestPatternRequestObject
	}

	if params.Has(ParamRequestURI) {
		return RequestPatternRequestURI
	}

	return RequestPatternNormal
}

// ClassifyCIBARequestPattern is the two-state classifier for backchannel
// authentication requests. request_uri is not a valid CIBA delivery and
// falls through to normal by the same absence rule.
func ClassifyCIBARequestPattern(params RequestParameters) RequestPattern {
	if params.Has(ParamRequest) {
		return RequestPatternRequestObject
	}

	return RequestPatternNormal
}
