// Package masking implements dynamic column masking for governed query
// results. Policies bind a masking type to (schema, table, column); the
// masker rewrites matching result columns before anything leaves the
// engine, so every consumer (HTTP API, MCP tools, CLI) sees the same
// governed view.
package masking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// FullMaskToken replaces values under a full masking policy.
const FullMaskToken = "*****"

// hashLength is the number of hex characters kept from the SHA-256
// digest under hash masking. 64 bits keeps joins stable without leaking
// the value.
const hashLength = 16

// Exempt reports whether the role sees the column unmasked. Admin is
// always exempt; other roles must be listed on the policy.
func Exempt(policy *models.MaskingPolicy, role auth.Role) bool {
	if role == auth.RoleAdmin {
		return true
	}
	for _, exempt := range policy.ExemptRoles {
		if auth.Role(exempt) == role {
			return true
		}
	}
	return false
}

// Apply rewrites result columns covered by a policy the caller's role is
// not exempt from. referencedTables names the physical tables the query
// read (lowercased, schema-qualified); only policies on those tables
// apply. Columns are matched by output name, so a column the query
// renamed is matched under its alias only if the alias keeps the policy
// column's name.
//
// Rows are modified in place. The returned slice lists the masked column
// names and is also recorded on the result.
func Apply(result *models.QueryResult, policies []*models.MaskingPolicy, role auth.Role, referencedTables []string) []string {
	if result == nil || len(policies) == 0 {
		return nil
	}

	tables := make(map[string]bool, len(referencedTables))
	for _, t := range referencedTables {
		tables[strings.ToLower(t)] = true
	}

	// Column index -> policy governing it.
	governed := make(map[int]*models.MaskingPolicy)
	var maskedNames []string

	for _, policy := range policies {
		if Exempt(policy, role) {
			continue
		}
		qualified := strings.ToLower(policy.SchemaName + "." + policy.TableName)
		if len(tables) > 0 && !tables[qualified] && !tables[strings.ToLower(policy.TableName)] {
			continue
		}
		for i, col := range result.Columns {
			if strings.EqualFold(col.Name, policy.ColumnName) {
				if _, taken := governed[i]; !taken {
					governed[i] = policy
					maskedNames = append(maskedNames, col.Name)
				}
			}
		}
	}

	if len(governed) == 0 {
		return nil
	}

	for _, row := range result.Rows {
		for idx, policy := range governed {
			if idx < len(row) {
				row[idx] = MaskValue(row[idx], policy)
			}
		}
	}

	result.MaskedCols = maskedNames
	return maskedNames
}

// MaskValue applies one policy to one value. Nil stays nil: there is
// nothing to hide.
func MaskValue(value any, policy *models.MaskingPolicy) any {
	if value == nil {
		return nil
	}

	switch policy.MaskingType {
	case models.MaskNull:
		return nil
	case models.MaskFull:
		return FullMaskToken
	case models.MaskHash:
		return hashValue(value)
	case models.MaskPartial:
		return partialValue(fmt.Sprintf("%v", value), policy.KeepSuffix)
	default:
		// Unknown types fail closed.
		return FullMaskToken
	}
}

// hashValue produces a stable digest: the same input always masks to the
// same output, so grouping and joining on the masked column still works.
func hashValue(value any) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v", value)))
	return hex.EncodeToString(sum[:])[:hashLength]
}

// partialValue masks all but the last keep characters, preserving
// separator punctuation so the shape of the value survives. A MAC
// address with keep=5 reads XX:XX:XX:XX:D4:9F.
func partialValue(s string, keep int) string {
	if keep <= 0 {
		keep = 4
	}
	runes := []rune(s)
	cut := len(runes) - keep
	if cut <= 0 {
		return s
	}

	for i := 0; i < cut; i++ {
		switch runes[i] {
		case ':', '-', '.', ' ', '@', '/':
			// keep separators
		default:
			runes[i] = 'X'
		}
	}
	return string(runes)
}
