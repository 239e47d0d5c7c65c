package message

import (
	"bytes"

	"github.com/emersion/go-msgauth/dkim"
)

type DKIMResult struct {
	Domain string
	Status string
	Error  string
}

// CheckDKIM verifies any DKIM signatures on the raw (transport-decoded)
// message bytes. Observational only; the pipeline logs the outcome.
func CheckDKIM(raw []byte) ([]DKIMResult, error) {
	results, err := dkim.Verify(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	out := make([]DKIMResult, 0, len(results))
	for _, res := range results {
		status := "fail"
		errStr := ""
		if res.Err == nil {
			status = "pass"
		} else {
			errStr = res.Err.Error()
		}
		out = append(out, DKIMResult{Domain: res.Domain, Status: status, Error: errStr})
	}
	return out, nil
}
