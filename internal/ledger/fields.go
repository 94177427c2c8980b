package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/residuals/internal/models"
)

// Ledger column names.
const (
	FieldPayoutID    = "Payout ID"
	FieldDealID      = "Deal ID"
	FieldMID         = "MID"
	FieldMerchant    = "Merchant"
	FieldMonth       = "Month"
	FieldCategory    = "Category"
	FieldPartnerID   = "Partner ID"
	FieldPartner     = "Partner"
	FieldRole        = "Role"
	FieldSplit       = "Split %"
	FieldAmount      = "Amount"
	FieldNetResidual = "Net Residual"
	FieldStatus      = "Status"
	FieldPaid        = "Paid"
	FieldPaidAt      = "Paid At"
)

// ComparedFields are the columns the reconciler owns. Other columns in the
// ledger are maintained by people and never compared or overwritten.
var ComparedFields = []string{
	FieldPayoutID, FieldDealID, FieldMID, FieldMerchant, FieldMonth, FieldCategory,
	FieldPartnerID, FieldPartner, FieldRole, FieldSplit, FieldAmount, FieldNetResidual,
	FieldStatus, FieldPaid, FieldPaidAt,
}

// Paid column values as the ledger's schema spells them.
const (
	PaidTrue  = "true"
	PaidFalse = "false"
)

// FieldsForPayout renders the outbound representation of a payout. String
// fields are only included when non-empty so that blank select values never
// reach the ledger. Paid is always included.
func FieldsForPayout(p *models.Payout) Fields {
	f := Fields{}
	setString(f, FieldPayoutID, p.ID)
	setString(f, FieldDealID, p.DealShortID)
	setString(f, FieldMID, p.MID)
	setString(f, FieldMerchant, p.MerchantName)
	setString(f, FieldMonth, p.Month)
	setString(f, FieldCategory, string(p.Category))
	setString(f, FieldPartnerID, p.PartnerID)
	setString(f, FieldPartner, p.PartnerName)
	setString(f, FieldRole, p.Role)
	setString(f, FieldStatus, string(p.Status))

	f[FieldSplit] = p.Split.InexactFloat64()
	f[FieldAmount] = p.Amount.InexactFloat64()
	f[FieldNetResidual] = p.BaseAmount.InexactFloat64()

	if p.Paid {
		f[FieldPaid] = PaidTrue
	} else {
		f[FieldPaid] = PaidFalse
	}
	if p.PaidAt > 0 {
		f[FieldPaidAt] = time.Unix(p.PaidAt, 0).UTC().Format("2006-01-02")
	}
	return f
}

func setString(f Fields, key, value string) {
	if value != "" {
		f[key] = value
	}
}

// PayoutIDOf returns the local payout ID a record refers to.
func PayoutIDOf(r Record) string {
	return Stringify(r.Fields[FieldPayoutID])
}

// Stringify renders a field value for comparison. nil becomes "".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return decimal.NewFromFloat(val).String()
	case float32:
		return decimal.NewFromFloat32(val).String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case decimal.Decimal:
		return val.String()
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

// ValuesEqual compares two field values. When either side is a number both
// are compared numerically, so 50 and "50.0" are equal. Otherwise values are
// compared as strings with nil treated as "", which keeps "00042" distinct
// from "42".
func ValuesEqual(a, b any) bool {
	as, bs := Stringify(a), Stringify(b)
	if as == bs {
		return true
	}
	if !isNumber(a) && !isNumber(b) {
		return false
	}
	ad, aErr := decimal.NewFromString(as)
	bd, bErr := decimal.NewFromString(bs)
	return aErr == nil && bErr == nil && ad.Equal(bd)
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, decimal.Decimal:
		return true
	}
	return false
}

// ChangedFields returns the compared columns whose local and remote values
// differ, in ComparedFields order.
func ChangedFields(local, remote Fields) []string {
	var changed []string
	for _, key := range ComparedFields {
		if !ValuesEqual(local[key], remote[key]) {
			changed = append(changed, key)
		}
	}
	return changed
}

// UpdateFields builds the patch for a remote record. Compared columns that
// are blank locally but set remotely are sent as nil to clear them.
func UpdateFields(local, remote Fields) Fields {
	out := make(Fields, len(local))
	for k, v := range local {
		out[k] = v
	}
	for _, key := range ComparedFields {
		if _, ok := local[key]; !ok && Stringify(remote[key]) != "" {
			out[key] = nil
		}
	}
	return out
}

// formulaIDChunk bounds the number of terms in one OR() formula to keep
// request URLs short.
const formulaIDChunk = 50

// EqualsFormula matches records whose field equals value.
func EqualsFormula(field, value string) string {
	return fmt.Sprintf("{%s}='%s'", field, escapeFormula(value))
}

// MIDFormula matches every record for one merchant.
func MIDFormula(mid string) string {
	return EqualsFormula(FieldMID, mid)
}

// PayoutIDFormulas returns OR formulas covering ids, split into chunks.
func PayoutIDFormulas(ids []string) []string {
	var formulas []string
	for start := 0; start < len(ids); start += formulaIDChunk {
		end := min(start+formulaIDChunk, len(ids))
		terms := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			terms = append(terms, EqualsFormula(FieldPayoutID, id))
		}
		if len(terms) == 1 {
			formulas = append(formulas, terms[0])
			continue
		}
		formulas = append(formulas, "OR("+strings.Join(terms, ",")+")")
	}
	return formulas
}

func escapeFormula(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
