// Package semantic loads, validates, and renders the declarative semantic
// model. The model maps warehouse tables to business entities and is the
// only schema description the analyst agent ever sees: prompts, the MCP
// surface, and the SQL table allowlist are all derived from it.
package semantic

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"

	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// Parse decodes a semantic model document. Unknown fields are rejected so
// a typo in the YAML fails loudly instead of silently dropping a column.
// Defaults (business names, spoken synonyms) are filled in after decoding.
func Parse(doc []byte) (*models.SemanticModel, error) {
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)

	var model models.SemanticModel
	if err := dec.Decode(&model); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("semantic model document is empty")
		}
		return nil, fmt.Errorf("parse semantic model: %w", err)
	}

	ApplyDefaults(&model)
	return &model, nil
}

// Load reads and parses a semantic model document from disk.
func Load(path string) (*models.SemanticModel, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read semantic model: %w", err)
	}
	return Parse(doc)
}

// Checksum returns the SHA-256 hex digest of the document bytes. Stored
// alongside each version so identical uploads don't create new revisions.
func Checksum(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// ApplyDefaults fills derived naming the document author left out:
// singular title-cased business names for tables ("access_points" becomes
// "Access Point"), a spoken-form synonym per table, and title-cased
// business names for dimensions and measures.
func ApplyDefaults(model *models.SemanticModel) {
	for i := range model.Tables {
		t := &model.Tables[i]

		if t.BusinessName == "" {
			t.BusinessName = titleWords(inflection.Singular(t.Table))
		}
		spoken := strings.ReplaceAll(t.Table, "_", " ")
		if spoken != t.Table && !containsFold(t.Synonyms, spoken) {
			t.Synonyms = append(t.Synonyms, spoken)
		}

		for j := range t.Dimensions {
			if t.Dimensions[j].BusinessName == "" {
				t.Dimensions[j].BusinessName = titleWords(t.Dimensions[j].Column)
			}
		}
		for j := range t.Measures {
			if t.Measures[j].BusinessName == "" {
				t.Measures[j].BusinessName = titleWords(t.Measures[j].Column)
			}
		}
	}

	for i := range model.Relationships {
		r := &model.Relationships[i]
		if r.Name == "" {
			r.Name = baseTable(r.FromTable) + "_to_" + baseTable(r.ToTable)
		}
		if r.Cardinality == "" {
			r.Cardinality = CardinalityManyToOne
		}
	}
}

// AllowedTables returns the lowercased physical table names the model
// covers, keyed both schema-qualified and bare. This is the allowlist SQL
// guardrails check generated queries against.
func AllowedTables(model *models.SemanticModel) map[string]bool {
	allowed := make(map[string]bool, len(model.Tables)*2)
	for i := range model.Tables {
		t := &model.Tables[i]
		allowed[strings.ToLower(t.QualifiedName())] = true
		allowed[strings.ToLower(t.Table)] = true
	}
	return allowed
}

// titleWords turns a snake_case identifier into spaced title case.
func titleWords(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// baseTable strips the schema qualifier from a table reference.
func baseTable(qualified string) string {
	if idx := strings.LastIndex(qualified, "."); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
