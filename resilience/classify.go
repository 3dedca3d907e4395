package resilience

import (
	"strings"

	"github.com/intentgw/gateway/plan"
)

var transientMarkers = []string{"timeout", "unavailable", "connection", "transient", "temporary"}
var permanentMarkers = []string{"unauthorized", "forbidden", "notfound", "invalid"}

var transientStatuses = map[int]bool{408: true, 429: true, 503: true, 504: true}
var permanentStatuses = map[int]bool{400: true, 401: true, 403: true, 404: true}

// Classify applies §4.4's rules to an optional HTTP status and an error's
// message, in that order: a transient or permanent status settles the
// category; otherwise the message markers decide.
func Classify(err error, httpStatus *int) plan.ErrorCategory {
	if httpStatus != nil {
		if transientStatuses[*httpStatus] {
			return plan.CategoryTransient
		}
		if permanentStatuses[*httpStatus] {
			return plan.CategoryPermanent
		}
	}

	if err == nil {
		return plan.CategoryUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return plan.CategoryTransient
		}
	}
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return plan.CategoryPermanent
		}
	}
	return plan.CategoryUnknown
}
