package underwriting

import "errors"

var ErrPolicyInvalid = errors.New("POLICY_INVALID")
