package db

// SchemaSQL declares the execution history table.
// SCHEMALESS keeps rows written by earlier loader versions readable.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS surello_history SCHEMALESS;
    DEFINE INDEX IF NOT EXISTS surello_history_source ON surello_history FIELDS source_path, source_type;
`
