package rewrite

import (
	"strings"

	"github.com/elmanelman/sql-judge/sqlscan"
)

// dynamic lists, per dialect, the functions and packages that read
// relations named in string arguments or run SQL text. Such reads bypass
// the scoping of the query around them.
var dynamic = map[sqlscan.Dialect][]string{
	sqlscan.Postgres: {
		"query_to_xml", "query_to_xmlschema", "query_to_xml_and_xmlschema",
		"cursor_to_xml", "cursor_to_xmlschema",
		"table_to_xml", "table_to_xmlschema", "table_to_xml_and_xmlschema",
		"schema_to_xml", "schema_to_xmlschema", "schema_to_xml_and_xmlschema",
		"database_to_xml", "database_to_xmlschema", "database_to_xml_and_xmlschema",
		"dblink", "dblink_exec", "dblink_open", "dblink_send_query",
		"pg_read_file", "pg_read_binary_file", "lo_import", "lo_export",
	},
	sqlscan.Oracle: {
		"dbms_xmlgen", "dbms_xmlquery", "dbms_sql", "dbms_xmlstore",
		"xmlquery", "xmltable", "xmlexists", "dburitype",
	},
	sqlscan.MySQL: {
		"load_file",
	},
	sqlscan.SQLite: {
		"load_extension", "readfile",
	},
}

var dynamicByDialect = func() map[sqlscan.Dialect]map[string]bool {
	out := map[sqlscan.Dialect]map[string]bool{}
	all := map[string]bool{}
	for d, names := range dynamic {
		set := map[string]bool{}
		for _, n := range names {
			set[n] = true
			all[n] = true
		}
		out[d] = set
	}
	out[sqlscan.Generic] = all
	return out
}()

// dynamicSQL refuses calls of dynamic functions and references into
// dynamic packages, wherever they appear in the statement.
func (r *rewriter) dynamicSQL() error {
	names := dynamicByDialect[r.opts.Dialect]
	for i, t := range r.toks {
		if !t.IsIdent() || !names[strings.ToLower(t.Ident())] {
			continue
		}
		if next := r.at(i + 1); next.IsPunct("(") || next.IsPunct(".") {
			return r.failAt(ErrDynamicSQL, t.Pos, "%s", t.Text)
		}
	}
	return nil
}
