package sqlscan

import "strings"

// reserved holds words that end a relation reference or start a clause, so
// they can never be read as an implicit alias.
var reserved = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		ALL AND ANY AS ASC BETWEEN BY CASE CHECK CONNECT CONSTRAINT CREATE CROSS
		CURRENT DEFAULT DELETE DESC DISTINCT DROP ELSE END EXCEPT EXISTS FETCH
		FOR FORCE FROM FULL GROUP HAVING IGNORE IN INNER INSERT INTERSECT INTO
		IS JOIN LATERAL LEFT LIKE LIMIT MINUS NATURAL NOT NULL OFFSET ON OR
		ORDER OUTER OVER PARTITION PIVOT QUALIFY RETURNING RIGHT SELECT SET
		START STRAIGHT_JOIN TABLE TABLESAMPLE THEN UNION UNPIVOT UPDATE USE
		USING VALUES WHEN WHERE WINDOW WITH`) {
		reserved[w] = struct{}{}
	}
}

// IsReserved reports whether word is treated as a reserved keyword.
func IsReserved(word string) bool {
	_, ok := reserved[strings.ToUpper(word)]
	return ok
}
