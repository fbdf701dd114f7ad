package sqlstore

import (
	"fmt"
	"strings"

	"github.com/warp/donor-crm/crm"
)

// whereClause renders the predicates of f as " WHERE ..." with "?"
// placeholders. extra predicates are ANDed in front.
func whereClause(f crm.Filter, extra ...string) (string, []any, error) {
	conds := append([]string(nil), extra...)
	var args []any

	for _, p := range f.Predicates {
		if !validColumn(p.Column) {
			return "", nil, fmt.Errorf("invalid filter column %q", p.Column)
		}
		switch p.Op {
		case crm.OpEq:
			conds = append(conds, p.Column+" = ?")
			args = append(args, p.Value)
		case crm.OpGte:
			conds = append(conds, p.Column+" >= ?")
			args = append(args, p.Value)
		case crm.OpLte:
			conds = append(conds, p.Column+" <= ?")
			args = append(args, p.Value)
		case crm.OpLike:
			conds = append(conds, "LOWER("+p.Column+") LIKE ?")
			args = append(args, "%"+strings.ToLower(fmt.Sprint(p.Value))+"%")
		case crm.OpIsNull:
			conds = append(conds, p.Column+" IS NULL")
		case crm.OpNotNull:
			conds = append(conds, p.Column+" IS NOT NULL")
		case crm.OpIn:
			if len(p.Values) == 0 {
				conds = append(conds, "1 = 0")
				continue
			}
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(p.Values)), ", ")
			conds = append(conds, p.Column+" IN ("+marks+")")
			args = append(args, p.Values...)
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", p.Op)
		}
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// pageClause renders LIMIT/OFFSET.
func pageClause(f crm.Filter) (string, []any) {
	if f.Limit <= 0 {
		return "", nil
	}
	if f.Offset > 0 {
		return " LIMIT ? OFFSET ?", []any{f.Limit, f.Offset}
	}
	return " LIMIT ?", []any{f.Limit}
}

// validColumn accepts "name" or "alias.name" made of [a-z0-9_].
func validColumn(c string) bool {
	if c == "" || len(c) > 64 {
		return false
	}
	for _, r := range c {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
