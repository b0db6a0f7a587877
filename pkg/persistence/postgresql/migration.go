package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				tenant_id VARCHAR(255),
				name VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(50) NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				connections JSONB NOT NULL DEFAULT '[]',
				variables JSONB,
				metadata JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_tenant ON workflows(tenant_id);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				workflow_name VARCHAR(255),
				triggered_by VARCHAR(255),
				trigger_data JSONB,
				status VARCHAR(50) NOT NULL,
				current_node_id VARCHAR(255),
				node_executions JSONB NOT NULL DEFAULT '[]',
				errors JSONB,
				final_output JSONB,
				is_test_mode BOOLEAN NOT NULL DEFAULT false,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow_mode_started
				ON workflow_executions(workflow_id, is_test_mode, started_at DESC);
			CREATE INDEX idx_executions_status ON workflow_executions(status);
		`,
		3: `
			CREATE TABLE hitl_requests (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				mode VARCHAR(20) NOT NULL,
				step_index INT NOT NULL DEFAULT 0,
				prompt TEXT,
				options JSONB,
				channels JSONB,
				timeout_minutes INT NOT NULL DEFAULT 0,
				timeout_action VARCHAR(50),
				default_value JSONB,
				status VARCHAR(20) NOT NULL,
				response JSONB,
				response_context JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE,
				answered_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_hitl_execution ON hitl_requests(execution_id);
			CREATE INDEX idx_hitl_pending_expiry ON hitl_requests(expires_at)
				WHERE status = 'pending';
		`,
		4: `
			CREATE TABLE global_variables (
				key VARCHAR(255) PRIMARY KEY,
				value JSONB,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE workflow_variables (
				workflow_id VARCHAR(255) NOT NULL,
				key VARCHAR(255) NOT NULL,
				value JSONB,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, key)
			);
		`,
	}
}
