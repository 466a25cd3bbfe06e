package rewrite

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elmanelman/sql-judge/schema"
	"github.com/elmanelman/sql-judge/sqlscan"
)

var testTables = []schema.Table{
	{Name: "employees", Physical: "c7_employees", Columns: []string{"id", "name", "dept", "salary"}},
	{Name: "customers", Physical: "c7_customers", Columns: []string{"id", "name"}},
	{Name: "orders", Physical: "c7_orders", Columns: []string{"id", "customer_id", "total"}},
}

func TestRewritePredicateCorpus(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"plain select",
			"SELECT name FROM employees",
			"SELECT name FROM c7_employees AS employees WHERE employees.flag_id = 2",
		},
		{
			"existing where is parenthesized",
			"SELECT name FROM employees WHERE salary > 10 OR dept = 'x' ORDER BY name",
			"SELECT name FROM c7_employees AS employees WHERE (salary > 10 OR dept = 'x') AND employees.flag_id = 2 ORDER BY name",
		},
		{
			"window clause is left alone",
			"SELECT name, ROW_NUMBER() OVER (PARTITION BY dept ORDER BY salary DESC) AS rn FROM employees e ORDER BY rn",
			"SELECT name, ROW_NUMBER() OVER (PARTITION BY dept ORDER BY salary DESC) AS rn FROM c7_employees e WHERE e.flag_id = 2 ORDER BY rn",
		},
		{
			"where goes before group by",
			"SELECT dept, COUNT(*) FROM employees GROUP BY dept HAVING COUNT(*) > 1",
			"SELECT dept, COUNT(*) FROM c7_employees AS employees WHERE employees.flag_id = 2 GROUP BY dept HAVING COUNT(*) > 1",
		},
		{
			"where goes before limit",
			"SELECT name FROM employees LIMIT 3",
			"SELECT name FROM c7_employees AS employees WHERE employees.flag_id = 2 LIMIT 3",
		},
		{
			"inner join filters both tables",
			"SELECT c.name, o.total FROM customers c JOIN orders o ON o.customer_id = c.id",
			"SELECT c.name, o.total FROM c7_customers c JOIN c7_orders o ON o.customer_id = c.id WHERE c.flag_id = 2 AND o.flag_id = 2",
		},
		{
			"comma join",
			"SELECT customers.name, orders.total FROM customers, orders WHERE customers.id = orders.customer_id",
			"SELECT customers.name, orders.total FROM c7_customers AS customers, c7_orders AS orders WHERE (customers.id = orders.customer_id) AND customers.flag_id = 2 AND orders.flag_id = 2",
		},
		{
			"scalar subquery is its own scope",
			"SELECT name FROM employees WHERE salary > (SELECT AVG(salary) FROM employees)",
			"SELECT name FROM c7_employees AS employees WHERE (salary > (SELECT AVG(salary) FROM c7_employees AS employees WHERE employees.flag_id = 2)) AND employees.flag_id = 2",
		},
		{
			"correlated exists",
			"SELECT c.name FROM customers c WHERE EXISTS (SELECT 1 FROM orders o WHERE o.customer_id = c.id)",
			"SELECT c.name FROM c7_customers c WHERE (EXISTS (SELECT 1 FROM c7_orders o WHERE (o.customer_id = c.id) AND o.flag_id = 2)) AND c.flag_id = 2",
		},
		{
			"cte body is scoped and cte name is not a table",
			"WITH top AS (SELECT name, salary FROM employees WHERE salary > 100) SELECT name FROM top",
			"WITH top AS (SELECT name, salary FROM c7_employees AS employees WHERE (salary > 100) AND employees.flag_id = 2) SELECT name FROM top",
		},
		{
			"non-recursive cte does not shadow its own body",
			"WITH employees AS (SELECT id, name FROM employees) SELECT * FROM employees",
			"WITH employees AS (SELECT id, name FROM c7_employees AS employees WHERE employees.flag_id = 2) SELECT * FROM employees",
		},
		{
			"union scopes every core",
			"SELECT name FROM customers UNION ALL SELECT name FROM employees ORDER BY 1",
			"SELECT name FROM c7_customers AS customers WHERE customers.flag_id = 2 UNION ALL SELECT name FROM c7_employees AS employees WHERE employees.flag_id = 2 ORDER BY 1",
		},
		{
			"derived table",
			"SELECT d.dept FROM (SELECT dept FROM employees GROUP BY dept) d",
			"SELECT d.dept FROM (SELECT dept FROM c7_employees AS employees WHERE employees.flag_id = 2 GROUP BY dept) d",
		},
		{
			"aggregate filter clause",
			"SELECT COUNT(*) FILTER (WHERE salary > 10) FROM employees",
			"SELECT COUNT(*) FILTER (WHERE salary > 10) FROM c7_employees AS employees WHERE employees.flag_id = 2",
		},
		{
			"physical name written directly",
			"SELECT name FROM c7_employees",
			"SELECT name FROM c7_employees WHERE c7_employees.flag_id = 2",
		},
		{
			"quoted table name",
			`SELECT name FROM "employees"`,
			`SELECT name FROM c7_employees AS "employees" WHERE "employees".flag_id = 2`,
		},
		{
			"trailing comment is dropped",
			"SELECT name FROM employees -- everyone\n",
			"SELECT name FROM c7_employees AS employees WHERE employees.flag_id = 2",
		},
		{
			"multiple statements",
			"SELECT 1; SELECT name FROM employees;",
			"SELECT 1;\nSELECT name FROM c7_employees AS employees WHERE employees.flag_id = 2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Rewrite(tc.in, schema.Grading, testTables, Options{Dialect: sqlscan.SQLite})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRewriteOuterJoinUsesSubSelect(t *testing.T) {
	got, err := Rewrite(
		"SELECT c.name, o.total FROM customers c LEFT JOIN orders o ON o.customer_id = c.id",
		schema.Grading, testTables, Options{Dialect: sqlscan.Postgres},
	)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT c.name, o.total FROM (SELECT id, name FROM c7_customers WHERE flag_id = 2) c "+
			"LEFT JOIN (SELECT id, customer_id, total FROM c7_orders WHERE flag_id = 2) o ON o.customer_id = c.id",
		got)
}

func TestRewriteSubSelectStrategy(t *testing.T) {
	got, err := Rewrite("SELECT * FROM employees", schema.Practice, testTables, Options{Strategy: SubSelect})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 1) AS employees", got)

	got, err = Rewrite("SELECT * FROM c7_employees", schema.Practice, testTables, Options{Strategy: SubSelect})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 1) AS c7_employees", got)
}

func TestRewriteDialects(t *testing.T) {
	got, err := Rewrite("SELECT name FROM employees", schema.Grading, testTables, Options{Dialect: sqlscan.Oracle})
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM c7_employees employees WHERE employees.flag_id = 2", got)

	got, err = Rewrite("SELECT name FROM `employees` USE INDEX (idx) WHERE id = 1", schema.Grading, testTables, Options{Dialect: sqlscan.MySQL})
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM c7_employees AS `employees` USE INDEX (idx) WHERE (id = 1) AND `employees`.flag_id = 2", got)
}

func TestRewriteLeavesOverClauseUntouched(t *testing.T) {
	over := "OVER (PARTITION BY x ORDER BY y)"
	queries := []string{
		"SELECT ROW_NUMBER() " + over + " FROM employees",
		"SELECT ROW_NUMBER() " + over + " FROM employees WHERE x > 1",
		"SELECT * FROM (SELECT ROW_NUMBER() " + over + " AS rn FROM employees) t WHERE rn = 1",
	}
	for _, q := range queries {
		got, err := Rewrite(q, schema.Grading, testTables, Options{})
		require.NoError(t, err, q)
		assert.Contains(t, got, over, q)
		start := strings.Index(got, over)
		assert.NotContains(t, got[start:start+len(over)], "flag_id", q)
	}
}

func TestRewriteRefuses(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"", ErrEmptyQuery},
		{"DELETE FROM employees", ErrUnsupportedStatement},
		{"UPDATE employees SET salary = 0", ErrUnsupportedStatement},
		{"SELECT * FROM c8_employees", ErrUnknownTable},
		{"SELECT * FROM sqlite_master", ErrUnknownTable},
		{"SELECT * FROM information_schema.tables", ErrUnknownTable},
		{"SELECT * FROM (SELECT * FROM employees", ErrUnbalanced},
		{"SELECT * FROM employees)", ErrUnbalanced},
		{"SELECT * INTO backup FROM employees", ErrUnsupportedStatement},
		{"WITH x AS (DELETE FROM employees RETURNING *) SELECT * FROM x", ErrUnsupportedStatement},
		{"SELECT 'unterminated", ErrSyntax},
		{"SELECT * FROM employees LEFT OUTER orders", ErrSyntax},
	}
	for _, tc := range cases {
		_, err := Rewrite(tc.in, schema.Grading, testTables, Options{})
		require.Error(t, err, tc.in)
		assert.True(t, errors.Is(err, tc.want), "%q: got %v", tc.in, err)
		assert.True(t, errors.Is(err, ErrIsolation), tc.in)
	}
}

func TestRewriteErrorLocation(t *testing.T) {
	_, err := Rewrite("SELECT 1; SELECT * FROM secrets", schema.Grading, testTables, Options{})
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 1, rerr.Statement)
	assert.Equal(t, "secrets", rerr.Detail)
	assert.Equal(t, len("SELECT * FROM "), rerr.Pos)
}

func TestRewriteInvalidFlag(t *testing.T) {
	_, err := Rewrite("SELECT 1", schema.Untagged, testTables, Options{})
	assert.ErrorIs(t, err, schema.ErrInvalidFlag)
}

func TestRewriteWithoutTables(t *testing.T) {
	got, err := Rewrite("SELECT 1 + 1 FROM dual", schema.Practice, nil, Options{Dialect: sqlscan.MySQL})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 + 1 FROM dual", got)
}

// squash collapses the runs of spaces left where comments were removed.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestRewriteCommentsNeverReachTheEngine(t *testing.T) {
	cases := []struct {
		name    string
		dialect sqlscan.Dialect
		in      string
		want    string
	}{
		{
			"postgres nested comment",
			sqlscan.Postgres,
			"SELECT * FROM /* /* */ employees */ c7_employees",
			"SELECT * FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 2) AS c7_employees",
		},
		{
			"postgres nested comment hiding a join",
			sqlscan.Postgres,
			"SELECT name FROM employees /* /* */ , c1_secrets */ WHERE id = 1",
			"SELECT name FROM c7_employees AS employees WHERE (id = 1) AND employees.flag_id = 2",
		},
		{
			"line comment hiding a statement",
			sqlscan.SQLite,
			"SELECT name FROM employees -- ; SELECT * FROM c2_salaries\nWHERE id = 1",
			"SELECT name FROM c7_employees AS employees WHERE (id = 1) AND employees.flag_id = 2",
		},
		{
			"mysql comment with a space",
			sqlscan.MySQL,
			"SELECT name FROM employees -- UNION SELECT name FROM c2_salaries\nORDER BY 1",
			"SELECT name FROM c7_employees AS employees WHERE employees.flag_id = 2 ORDER BY 1",
		},
		{
			"oracle hint",
			sqlscan.Oracle,
			"SELECT /*+ FULL(e) */ name FROM employees e",
			"SELECT name FROM c7_employees e WHERE e.flag_id = 2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Rewrite(tc.in, schema.Grading, testTables, Options{Dialect: tc.dialect})
			require.NoError(t, err)
			assert.Equal(t, tc.want, squash(got))
			assert.NotContains(t, got, "/*")
			assert.NotContains(t, got, "--")
		})
	}
}

func TestRewriteRefusesCommentTricks(t *testing.T) {
	cases := []struct {
		name    string
		dialect sqlscan.Dialect
		in      string
		want    error
	}{
		{
			"mysql executable comment",
			sqlscan.MySQL,
			"SELECT * FROM employees /*! UNION SELECT id, name, flag_id FROM c2_salaries */ ORDER BY 1",
			ErrExecutableComment,
		},
		{
			"mariadb executable comment",
			sqlscan.MySQL,
			"SELECT name FROM employees /*M!100000 UNION SELECT name FROM c2_salaries */ ORDER BY 1",
			ErrExecutableComment,
		},
		{
			"mysql double dash without a space",
			sqlscan.MySQL,
			"SELECT * FROM employees WHERE 1=1--1 UNION ALL SELECT * FROM c2_salaries\nORDER BY 1",
			ErrUnknownTable,
		},
		{
			"postgres comment closed early",
			sqlscan.Postgres,
			"SELECT * FROM /* /* */ employees",
			ErrSyntax,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Rewrite(tc.in, schema.Grading, testTables, Options{Dialect: tc.dialect})
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrIsolation)
		})
	}
}

func TestRewriteStarHidesFlagColumn(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		in   string
		want string
	}{
		{
			"bare star",
			Options{Dialect: sqlscan.SQLite},
			"SELECT * FROM employees WHERE salary > 10",
			"SELECT * FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 2) AS employees WHERE salary > 10",
		},
		{
			"distinct star",
			Options{Dialect: sqlscan.SQLite},
			"SELECT DISTINCT * FROM customers",
			"SELECT DISTINCT * FROM (SELECT id, name FROM c7_customers WHERE flag_id = 2) AS customers",
		},
		{
			"qualified star wraps only its table",
			Options{Dialect: sqlscan.Postgres},
			"SELECT c.*, o.total FROM customers c JOIN orders o ON o.customer_id = c.id",
			"SELECT c.*, o.total FROM (SELECT id, name FROM c7_customers WHERE flag_id = 2) c JOIN c7_orders o ON o.customer_id = c.id WHERE o.flag_id = 2",
		},
		{
			"whole-row reference",
			Options{Dialect: sqlscan.Postgres},
			"SELECT row_to_json(e) FROM employees e",
			"SELECT row_to_json(e) FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 2) e",
		},
		{
			"product counts as star",
			Options{Dialect: sqlscan.SQLite},
			"SELECT salary * 2 FROM employees",
			"SELECT salary * 2 FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 2) AS employees",
		},
		{
			"count star keeps the predicate",
			Options{Dialect: sqlscan.SQLite},
			"SELECT COUNT(*) FROM employees",
			"SELECT COUNT(*) FROM c7_employees AS employees WHERE employees.flag_id = 2",
		},
		{
			"oracle star",
			Options{Dialect: sqlscan.Oracle},
			"SELECT * FROM employees",
			"SELECT * FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 2) employees",
		},
		{
			"mysql star drops index hints",
			Options{Dialect: sqlscan.MySQL},
			"SELECT * FROM `employees` USE INDEX (idx) WHERE id = 1",
			"SELECT * FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 2) AS `employees` WHERE id = 1",
		},
		{
			"subselect strategy qualified star",
			Options{Strategy: SubSelect, Dialect: sqlscan.SQLite},
			"SELECT e.* FROM employees e",
			"SELECT e.* FROM (SELECT id, name, dept, salary FROM c7_employees WHERE flag_id = 2) e",
		},
		{
			"subselect strategy comma join",
			Options{Strategy: SubSelect, Dialect: sqlscan.Postgres},
			"SELECT * FROM customers c, orders o WHERE o.customer_id = c.id",
			"SELECT * FROM (SELECT id, name FROM c7_customers WHERE flag_id = 2) c, (SELECT id, customer_id, total FROM c7_orders WHERE flag_id = 2) o WHERE o.customer_id = c.id",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Rewrite(tc.in, schema.Grading, testTables, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRewriteRefusesDynamicSQL(t *testing.T) {
	cases := []struct {
		dialect sqlscan.Dialect
		in      string
	}{
		{sqlscan.Postgres, "SELECT query_to_xml('select * from c1_employees', true, true, '')"},
		{sqlscan.Postgres, "SELECT name FROM employees WHERE name = (SELECT pg_catalog.table_to_xml('c1_employees', true, true, '')::text)"},
		{sqlscan.Postgres, `SELECT "database_to_xml"(true, true, '')`},
		{sqlscan.Postgres, "SELECT * FROM dblink('dbname=judge', 'select 1') AS t(x int)"},
		{sqlscan.Oracle, "SELECT dbms_xmlgen.getxml('select * from c1_employees') FROM dual"},
		{sqlscan.Oracle, "SELECT SYS.DBMS_XMLGEN.GETXML('select 1 from dual') FROM dual"},
		{sqlscan.MySQL, "SELECT load_file('/etc/passwd')"},
		{sqlscan.Generic, "SELECT query_to_xml('select 1', true, true, '')"},
	}
	for _, tc := range cases {
		_, err := Rewrite(tc.in, schema.Grading, testTables, Options{Dialect: tc.dialect})
		assert.ErrorIs(t, err, ErrDynamicSQL, tc.in)
		assert.ErrorIs(t, err, ErrIsolation, tc.in)
	}

	got, err := Rewrite("SELECT 'query_to_xml(1)' AS dblink", schema.Grading, testTables, Options{Dialect: sqlscan.Postgres})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'query_to_xml(1)' AS dblink", got)
}
