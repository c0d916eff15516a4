package query

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maxpert/mylite/protocol/query/rules"
	"github.com/maxpert/mylite/telemetry"
)

type cachedTranspilation struct {
	SQL             string
	Transformations []Transformation
}

// Transpiler applies the generic rule set to literal-free statement text.
// Since literals are already placeholders, statements differing only in
// their values share one cache entry.
type Transpiler struct {
	rules RuleSet
	cache *lru.Cache[uint64, cachedTranspilation]
}

func NewTranspiler(cacheSize int) (*Transpiler, error) {
	cache, err := lru.New[uint64, cachedTranspilation](cacheSize)
	if err != nil {
		return nil, err
	}

	ruleSet := RuleSet{
		&rules.TransactionSyntaxRule{},
		&rules.InsertIgnoreRule{},
		&rules.ReplaceIntoRule{},
		&rules.TruncateRule{},
		&rules.OptimizeRule{},
		&rules.IndexHintsRule{},
		&rules.SelectModifiersRule{},
		&rules.LockingRule{},
		&rules.LimitRule{},
	}

	sort.Sort(ruleSet)

	return &Transpiler{
		rules: ruleSet,
		cache: cache,
	}, nil
}

// Transpile rewrites sql and reports whether the result came from the cache.
func (t *Transpiler) Transpile(sql string) (string, []Transformation, bool, error) {
	key := xxhash.Sum64String(sql)
	if cached, ok := t.cache.Get(key); ok {
		telemetry.RewriteCacheTotal.With("hit").Inc()
		return cached.SQL, cached.Transformations, true, nil
	}
	telemetry.RewriteCacheTotal.With("miss").Inc()

	var transformations []Transformation
	for _, rule := range t.rules {
		newSQL, applied, err := rule.ApplyPattern(sql)
		if err != nil {
			return "", nil, false, err
		}
		if applied {
			transformations = append(transformations, Transformation{
				Rule:   rule.Name(),
				Before: sql,
				After:  newSQL,
			})
			sql = newSQL
		}
	}

	t.cache.Add(key, cachedTranspilation{
		SQL:             sql,
		Transformations: transformations,
	})
	return sql, transformations, false, nil
}
