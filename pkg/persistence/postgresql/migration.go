package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE automations (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				revision BIGINT NOT NULL DEFAULT 0,
				trigger_app_id VARCHAR(255) NOT NULL,
				trigger_key VARCHAR(255) NOT NULL,
				trigger_filters JSONB DEFAULT '[]',
				root_action_ids JSONB DEFAULT '[]',
				actions JSONB DEFAULT '{}',
				origin VARCHAR(50),
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_automations_status ON automations(status);
			CREATE INDEX idx_automations_trigger ON automations(trigger_app_id, trigger_key);
			CREATE INDEX idx_automations_deleted_at ON automations(deleted_at);

			CREATE TABLE activations (
				id VARCHAR(255) PRIMARY KEY,
				automation_id VARCHAR(255) NOT NULL,
				configuration_correlation_id VARCHAR(255) NOT NULL,
				revision BIGINT NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL,
				trigger_key VARCHAR(255) NOT NULL,
				external_entity_id VARCHAR(255),
				payload JSONB DEFAULT '{}',
				output JSONB DEFAULT '{}',
				error_message TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_activations_automation_id ON activations(automation_id);
			CREATE INDEX idx_activations_status ON activations(status);
			CREATE INDEX idx_activations_entity ON activations(external_entity_id, trigger_key);

			CREATE TABLE action_statuses (
				activation_id VARCHAR(255) NOT NULL,
				action_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				execution_id VARCHAR(255),
				output JSONB DEFAULT '{}',
				error_reason TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (activation_id, action_id)
			);

			CREATE INDEX idx_action_statuses_execution_id ON action_statuses(execution_id);
			CREATE INDEX idx_action_statuses_status ON action_statuses(status);

			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				identifier VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				schedule_date TIMESTAMP WITH TIME ZONE NOT NULL,
				event_payload JSONB DEFAULT '{}',
				overrideable BOOLEAN NOT NULL DEFAULT false,
				activation_id VARCHAR(255),
				scheduled_action_id VARCHAR(255),
				correlation_id VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_schedules_identifier ON schedules(identifier);
			-- At most one PENDING schedule per identifier; CreateSchedule's
			-- ON CONFLICT arbitrates on this index.
			CREATE UNIQUE INDEX idx_schedules_pending_identifier
				ON schedules(identifier) WHERE status = 'PENDING';
			CREATE INDEX idx_schedules_due ON schedules(status, schedule_date);
			CREATE INDEX idx_schedules_correlation_id ON schedules(correlation_id);

			CREATE TABLE trigger_schedules (
				id VARCHAR(255) PRIMARY KEY,
				automation_id VARCHAR(255) NOT NULL,
				cron_expression VARCHAR(255) NOT NULL,
				event_payload JSONB DEFAULT '{}',
				next_due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_trigger_schedules_due ON trigger_schedules(active, next_due_at);

			CREATE TABLE idempotency_records (
				key VARCHAR(255) NOT NULL,
				app_id VARCHAR(255) NOT NULL,
				trigger_key VARCHAR(255) NOT NULL,
				activation_ids JSONB DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (key, app_id, trigger_key)
			);

			CREATE INDEX idx_idempotency_records_expires_at ON idempotency_records(expires_at);
		`,
	}
}
