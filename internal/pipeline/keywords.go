package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quoteintake/internal/util"
)

// Keywords holds the header probes used to recognise each column. Matching
// is substring based on normalized header text.
type Keywords struct {
	Name   []string `yaml:"name"`
	Price  []string `yaml:"price"`
	Expiry []string `yaml:"expiry"`
	Code   []string `yaml:"code"`
}

func DefaultKeywords() Keywords {
	return Keywords{
		Name:   []string{"اسم", "الصنف", "صنف", "البيان", "المنتج", "الدواء", "name", "item", "product", "description", "drug"},
		Price:  []string{"سعر", "ثمن", "القيمه", "price", "cost", "rate"},
		Expiry: []string{"صلاحيه", "انتهاء", "expiry", "expiration", "exp", "valid"},
		Code:   []string{"كود", "باركود", "رمز", "code", "barcode", "sku", "ref"},
	}.normalized()
}

// LoadKeywords reads extra probes from a YAML file and appends them to the
// defaults. An empty path returns the defaults.
func LoadKeywords(path string) (Keywords, error) {
	base := DefaultKeywords()
	if path == "" {
		return base, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("read keywords: %w", err)
	}
	var extra Keywords
	if err := yaml.Unmarshal(blob, &extra); err != nil {
		return Keywords{}, fmt.Errorf("decode keywords %s: %w", path, err)
	}
	return base.merge(extra.normalized()), nil
}

func (k Keywords) normalized() Keywords {
	return Keywords{
		Name:   normalizeProbes(k.Name),
		Price:  normalizeProbes(k.Price),
		Expiry: normalizeProbes(k.Expiry),
		Code:   normalizeProbes(k.Code),
	}
}

func (k Keywords) merge(extra Keywords) Keywords {
	return Keywords{
		Name:   appendUnique(k.Name, extra.Name),
		Price:  appendUnique(k.Price, extra.Price),
		Expiry: appendUnique(k.Expiry, extra.Expiry),
		Code:   appendUnique(k.Code, extra.Code),
	}
}

func normalizeProbes(probes []string) []string {
	out := make([]string, 0, len(probes))
	for _, p := range probes {
		if n := util.NormalizeHeader(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func appendUnique(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
