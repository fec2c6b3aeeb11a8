package usecase

// TableStep is a group of Athena statements run in order. When Output is set
// the result of the last statement is published as meta.<Output>.csv.
type TableStep struct {
	Name    string
	Queries []string
	Output  string
}

// DefaultTableSteps build the results summary tables from the crawled meta
// table.
var DefaultTableSteps = []TableStep{
	{
		Name: "meta_alt",
		Queries: []string{
			`DROP TABLE IF EXISTS meta_alt`,
			`CREATE TABLE meta_alt AS
SELECT DISTINCT
  id,
  CASE
    WHEN LOWER(workflow) LIKE '%phoenix%' THEN 'phoenix'
    WHEN LOWER(workflow) LIKE '%theiaprok%' THEN 'theiaprok'
    WHEN UPPER(workflow) LIKE '%RECAPP%' THEN 'recapp'
    WHEN UPPER(workflow) LIKE '%BASESPACE%' THEN 'basespace_fetch'
    ELSE workflow
  END AS workflow,
  run,
  file,
  timestamp,
  origin,
  current,
  REGEXP_REPLACE(id, '-WA.*', '') AS id_alt
FROM meta`,
		},
	},
	{
		Name:    "raw",
		Queries: []string{`SELECT * FROM meta`},
		Output:  "raw",
	},
	{
		Name:    "clean",
		Queries: []string{`SELECT * FROM meta_alt`},
		Output:  "clean",
	},
	{
		Name: "gba",
		Queries: []string{`SELECT * FROM meta_alt
WHERE
  (id = 'null' AND workflow = 'phoenix' AND file = 'Phoenix_Summary.tsv') OR
  (id = 'null' AND workflow = 'phoenix' AND file = 'terra_table.tsv') OR
  (id = 'null' AND workflow = 'theiaprok' AND file = 'terra_table.tsv') OR
  (id = 'null' AND workflow = 'recapp' AND file = 'terra_table.tsv')`},
		Output: "gba",
	},
	{
		Name: "fastq",
		Queries: []string{`SELECT * FROM meta_alt
WHERE
  file LIKE '%.fastq.gz%' AND
  (file LIKE '%R1%' OR file LIKE '%R2%')`},
		Output: "fastq",
	},
	{
		Name: "fasta",
		Queries: []string{`SELECT * FROM meta_alt
WHERE
  file LIKE '%.fasta%'
  OR file LIKE '%.fa'
  OR file LIKE '%.fa.gz'
  OR file LIKE '%.fna%'`},
		Output: "fasta",
	},
}
