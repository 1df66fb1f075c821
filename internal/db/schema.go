package db

const (
	entryTable  = "journal_entry"
	metaTable   = "user_meta"
	vectorTable = "entry_vector"
)

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- JOURNAL ENTRIES (append-only, record id "<user>/<entry id>")
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS journal_entry SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON journal_entry TYPE string;
    DEFINE FIELD IF NOT EXISTS entry_id ON journal_entry TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON journal_entry TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON journal_entry TYPE datetime;

    DEFINE INDEX IF NOT EXISTS journal_entry_user ON journal_entry FIELDS user_id, entry_id UNIQUE;

    -- ==========================================================================
    -- USER META (streak state, record id "<user>")
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user_meta SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON user_meta TYPE string;
    DEFINE FIELD IF NOT EXISTS entry_dates ON user_meta TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS streak ON user_meta TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS badges ON user_meta TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS updated ON user_meta TYPE datetime VALUE time::now();

    -- ==========================================================================
    -- ENTRY VECTORS (vector and id map slot in one record, id "<user>/<position>")
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS entry_vector SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON entry_vector TYPE string;
    DEFINE FIELD IF NOT EXISTS position ON entry_vector TYPE int;
    DEFINE FIELD IF NOT EXISTS entry_id ON entry_vector TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON entry_vector TYPE array<float>;

    DEFINE INDEX IF NOT EXISTS entry_vector_position ON entry_vector FIELDS user_id, position UNIQUE;
    DEFINE INDEX IF NOT EXISTS entry_vector_entry ON entry_vector FIELDS user_id, entry_id UNIQUE;
`
