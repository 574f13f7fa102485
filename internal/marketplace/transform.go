package marketplace

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"foliosync/internal/model"
)

// TransformFunc converts one raw loan page value into its typed form.
type TransformFunc func(string) (any, error)

// Transforms maps raw loan page headers to their value transforms. The
// loan page carries a fixed set of detail headers; an unknown header is
// an error, since it means the page layout changed under us.
type Transforms struct {
	funcs map[string]TransformFunc
}

// NewTransforms builds the transform registry for every known loan page
// header.
func NewTransforms() (*Transforms, error) {
	funcs := map[string]TransformFunc{
		"Amount Requested":               dollarsToFloat,
		"Loan Purpose":                   identity,
		"Loan Grade":                     identity,
		"Interest Rate":                  percentToFloat,
		"Loan Length":                    loanLengthMonths,
		"Monthly Payment":                monthlyToFloat,
		"Funding Received":               percentFunded,
		"Investors":                      leadingInt,
		"Loan Status":                    identity,
		"Listing Issued on":              submitTime,
		"Loan Submitted on":              submitTime,
		"Note:":                          identity,
		"Home Ownership":                 identity,
		"Current Employer":               identity,
		"Length of Employment":           identity,
		"Gross Income":                   monthlyToFloat,
		"Debt-to-Income (DTI)":           percentToFloat,
		"Location":                       identity,
		"Credit Score Range:":            identity,
		"Earliest Credit Line":           creditSince,
		"Open Credit Lines":              parseInt,
		"Total Credit Lines":             parseInt,
		"Revolving Credit Balance":       dollarsToFloat,
		"Revolving Line Utilization":     percentToFloat,
		"Inquiries in the Last 6 Months": parseInt,
		"Accounts Now Delinquent":        parseInt,
		"Delinquent Amount":              dollarsToFloat,
		"Delinquencies (Last 2 yrs)":     parseInt,
		"Months Since Last Delinquency":  parseInt,
		"Public Records On File":         parseInt,
		"Months Since Last Record":       parseInt,
	}

	for header, fn := range funcs {
		if fn == nil {
			return nil, fmt.Errorf("no transform registered for header %q", header)
		}
	}
	return &Transforms{funcs: funcs}, nil
}

// Apply transforms the raw header/value pairs from a loan page into a
// typed profile. Header names are normalized to snake_case keys. The
// literal value "n/a" passes through untransformed.
func (t *Transforms) Apply(fields map[string]string) (model.LoanProfile, error) {
	profile := make(model.LoanProfile, len(fields))

	for header, value := range fields {
		fn, ok := t.funcs[header]
		if !ok {
			return nil, fmt.Errorf("unknown loan page header %q", header)
		}

		key := normalizeHeader(header)
		if strings.TrimSpace(value) == "n/a" {
			profile[key] = value
			continue
		}

		typed, err := fn(value)
		if err != nil {
			return nil, fmt.Errorf("transform %q value %q: %w", header, value, err)
		}
		profile[key] = typed
	}
	return profile, nil
}

// normalizeHeader turns a display header into a storage key, e.g.
// "Debt-to-Income (DTI)" -> "debt_to_income_dti".
func normalizeHeader(header string) string {
	key := strings.ToLower(strings.TrimSpace(header))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	for _, r := range []string{"(", ")", ":"} {
		key = strings.ReplaceAll(key, r, "")
	}
	return key
}

func identity(v string) (any, error) {
	return v, nil
}

func parseInt(v string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return nil, err
	}
	return n, nil
}

// dollarsToFloat parses values like "$12,500.00".
func dollarsToFloat(v string) (any, error) {
	v = strings.ReplaceAll(v, "$", "")
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// percentToFloat parses values like "13.49%" into a fraction.
func percentToFloat(v string) (any, error) {
	v = strings.ReplaceAll(v, "%", "")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil, err
	}
	return f / 100, nil
}

// percentFunded parses values like "$12,500 (100.00%)".
func percentFunded(v string) (any, error) {
	parts := strings.Fields(v)
	if len(parts) < 2 {
		return nil, fmt.Errorf("malformed funding value")
	}
	pct := strings.Trim(parts[1], "()")
	return percentToFloat(pct)
}

// loanLengthMonths parses values like "3 years (36 months)".
func loanLengthMonths(v string) (any, error) {
	parts := strings.Fields(v)
	if len(parts) < 3 {
		return nil, fmt.Errorf("malformed loan length")
	}
	return strconv.Atoi(strings.Trim(parts[2], "()"))
}

// monthlyToFloat parses values like "$428.93 / month".
func monthlyToFloat(v string) (any, error) {
	parts := strings.Fields(v)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty monthly value")
	}
	return dollarsToFloat(parts[0])
}

// leadingInt parses values like "83 people funded this loan".
func leadingInt(v string) (any, error) {
	parts := strings.Fields(v)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty count value")
	}
	return strconv.Atoi(parts[0])
}

// submitTime parses values like "10/6/09 9:57 AM". Two-digit years are in
// the 2000s.
func submitTime(v string) (any, error) {
	ts, err := time.Parse("1/2/06 3:04 PM", strings.TrimSpace(v))
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// creditSince parses values like "11/1998" marking the earliest credit
// line.
func creditSince(v string) (any, error) {
	m, y, ok := strings.Cut(strings.TrimSpace(v), "/")
	if !ok {
		return nil, fmt.Errorf("malformed credit line date")
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return nil, err
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month %d out of range", month)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}
