package model

// TenantSchema is applied to every tenant database when its connection is
// first opened. Statements are idempotent so re-running them against an
// already-provisioned database is harmless.
var TenantSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversation (
		id UUID PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT 'web',
		contact_name TEXT,
		contact_number TEXT,
		unread_count INT NOT NULL DEFAULT 0,
		last_message TEXT,
		last_message_at TIMESTAMPTZ,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS conversation_contact_idx
		ON conversation (tenant_id, contact_number, platform)`,
	`CREATE TABLE IF NOT EXISTS message (
		id UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversation (id),
		sender TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'text',
		content TEXT NOT NULL,
		media_url TEXT,
		is_read BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS message_conversation_idx
		ON message (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS ticket (
		id UUID PRIMARY KEY,
		ticket_number TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		priority TEXT NOT NULL DEFAULT 'low',
		status TEXT NOT NULL DEFAULT 'open',
		tenant_id TEXT NOT NULL,
		conversation_id UUID,
		assigned_to_id TEXT,
		created_by_id TEXT,
		assigned_by_type TEXT NOT NULL DEFAULT 'human',
		assigned_by_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ticket_tenant_created_idx
		ON ticket (tenant_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS ai_ticket_trigger (
		id UUID PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		keyword TEXT NOT NULL,
		intent TEXT NOT NULL,
		assigned_role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
