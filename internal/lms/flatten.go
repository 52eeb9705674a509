package lms

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/errs"
)

// CustomFieldsPrefix marks the flattened custom field columns.
const CustomFieldsPrefix = "customFields."

// CustomFieldsColumn is the column the custom fields are consolidated into.
const CustomFieldsColumn = "custom_fields"

// DefaultColumnNames maps LMS user attributes to destination column names.
var DefaultColumnNames = map[string]string{
	"id":               "lms_user_id",
	"departmentId":     "department_id",
	"firstName":        "first_name",
	"middleName":       "middle_name",
	"lastName":         "last_name",
	"username":         "user_name",
	"password":         "password",
	"emailAddress":     "email_address",
	"externalId":       "illum_id",
	"ccEmailAddresses": "cc_email_addresses",
	"languageId":       "language_id",
	"gender":           "gender",
	"address":          "address",
	"address2":         "address_2",
	"city":             "city",
	"provinceId":       "province_id",
	"countryId":        "country_id",
	"postalCode":       "postal_code",
	"phone":            "phone",
	"employeeNumber":   "employee_number",
	"location":         "location",
	"jobTitle":         "job_title",
	"referenceNumber":  "reference_number",
	"dateHired":        "date_hired",
	"dateTerminated":   "date_terminated",
	"dateEdited":       "date_edited",
	"dateAdded":        "date_added",
	"lastLoginDate":    "last_login_date",
	"notes":            "notes",
	"roleIds":          "role_ids",
	"activeStatus":     "active_status",
	"isLearner":        "is_learner",
	"isAdmin":          "is_admin",
	"isInstructor":     "is_instructor",
	"isManager":        "is_manager",
	"supervisorId":     "supervisor_id",
	"hasUsername":      "has_user_name",
}

// Flatten turns nested user objects into one flat record per user. Nested
// objects become dotted column names ("customFields.shirtSize"); arrays are
// stored as JSON text. Columns appear in first-seen order; within one user,
// top-level attributes come before dotted ones, each group sorted by name.
// An array that cannot be encoded fails the whole batch.
func Flatten(users []map[string]any) (*batch.Batch, error) {
	b := batch.New()
	seen := make(map[string]bool)

	for i, u := range users {
		rec := make(batch.Record)
		if err := flattenInto(rec, "", u); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("flatten user %d (id=%v)", i, u["id"]), err)
		}

		for _, k := range sortedKeys(rec) {
			if !seen[k] {
				seen[k] = true
				b.Columns = append(b.Columns, k)
			}
		}
		b.Append(rec)
	}
	return b, nil
}

func flattenInto(rec batch.Record, prefix string, obj map[string]any) error {
	for k, v := range obj {
		key := prefix + k
		switch x := v.(type) {
		case map[string]any:
			if len(x) == 0 {
				rec[key] = nil
				continue
			}
			if err := flattenInto(rec, key+".", x); err != nil {
				return err
			}
		case []any:
			out, err := sonic.ConfigStd.Marshal(x)
			if err != nil {
				return fmt.Errorf("encode attribute %q: %w", key, err)
			}
			rec[key] = string(out)
		default:
			rec[key] = v
		}
	}
	return nil
}

// sortedKeys orders keys by nesting depth, then name.
func sortedKeys(rec batch.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := strings.Count(keys[i], "."), strings.Count(keys[j], ".")
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Rename applies mapping (source name to destination name) to the batch
// columns. Columns without an entry keep their name.
func Rename(b *batch.Batch, mapping map[string]string) {
	cols := append([]string(nil), b.Columns...)
	for _, c := range cols {
		if to, ok := mapping[c]; ok {
			b.RenameColumn(c, to)
		}
	}
}

// ConsolidateCustomFields folds every customFields.* column into a single
// custom_fields column holding an object of the non-missing values, keyed by
// the original column names. The source columns are dropped.
func ConsolidateCustomFields(b *batch.Batch) {
	var fields []string
	for _, c := range b.Columns {
		if strings.HasPrefix(c, CustomFieldsPrefix) {
			fields = append(fields, c)
		}
	}

	for _, rec := range b.Records {
		obj := make(map[string]any, len(fields))
		for _, f := range fields {
			if v := rec[f]; !batch.IsMissing(v) {
				obj[f] = v
			}
		}
		rec[CustomFieldsColumn] = obj
	}

	for _, f := range fields {
		b.DropColumn(f)
	}
	if !b.HasColumn(CustomFieldsColumn) {
		b.Columns = append(b.Columns, CustomFieldsColumn)
	}
}
