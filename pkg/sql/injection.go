package sql

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a parameter value that tripped the
// injection detector.
type InjectionCheckResult struct {
	IsSQLi      bool
	Fingerprint string // libinjection fingerprint of the matched pattern
	ParamName   string
	ParamValue  any
}

// CheckAllParameters runs libinjection over every supplied parameter value
// and returns a result per flagged parameter, ordered by name so error
// messages are stable. Parameter values are substituted as bound values,
// never spliced into SQL text, so this is defense in depth rather than the
// primary barrier.
func CheckAllParameters(params map[string]any) []*InjectionCheckResult {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []*InjectionCheckResult
	for _, name := range names {
		if result := checkParameter(name, params[name]); result != nil {
			results = append(results, result)
		}
	}
	return results
}

// checkParameter flags string values matching SQL injection patterns.
// Non-string values cannot carry injection payloads and always pass.
func checkParameter(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}

	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		ParamName:   paramName,
		ParamValue:  value,
	}
}
