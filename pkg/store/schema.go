// Package store is the append-only SQLite audit store for the escalation
// engine: sessions, risk assessments, interventions, safety plans, and the
// engine event log. The engine never reads history back for its own logic;
// all state needed for evaluation lives in memory per active session, and
// this store exists for audit and research export only.
package store

// SchemaDDL defines the SQLite schema for the vigil audit database.
// Tables: sessions, risk_assessments, interventions, safety_plans, events.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Sessions: one row per therapeutic interaction
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    status TEXT NOT NULL DEFAULT 'active',
    escalation_level INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    closed_at TEXT
);

-- Risk assessments: the per-session audit trail, append-only
CREATE TABLE IF NOT EXISTS risk_assessments (
    id INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    score INTEGER NOT NULL,
    factors TEXT NOT NULL DEFAULT '[]',
    caveats TEXT NOT NULL DEFAULT '[]',
    imminent INTEGER NOT NULL DEFAULT 0,
    escalation_level_after INTEGER NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions (session_id)
);

-- Interventions: one row per dispatched intervention; user_response and
-- effectiveness_score are the only post-creation writes, each at most once
CREATE TABLE IF NOT EXISTS interventions (
    id INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    intervention_type TEXT NOT NULL,
    trigger_level INTEGER NOT NULL,
    payload TEXT,
    user_response TEXT,
    effectiveness_score INTEGER,
    FOREIGN KEY (session_id) REFERENCES sessions (session_id)
);

-- Safety plans: append-only history; superseding creates a new row
CREATE TABLE IF NOT EXISTS safety_plans (
    id INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    warning_signs TEXT NOT NULL,
    coping_strategies TEXT NOT NULL,
    support_contacts TEXT NOT NULL,
    professional_contacts TEXT NOT NULL,
    reasons_to_live TEXT NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions (session_id)
);

-- Engine event log: lifecycle and fault events
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    session_id TEXT,
    detail TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_assessment_session ON risk_assessments(session_id);
CREATE INDEX IF NOT EXISTS idx_intervention_session ON interventions(session_id);
CREATE INDEX IF NOT EXISTS idx_plan_session ON safety_plans(session_id);
CREATE INDEX IF NOT EXISTS idx_event_session ON events(session_id);
`
