package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Parameter catalog
			CREATE TABLE parameters (
				id UUID PRIMARY KEY,
				key VARCHAR(100) NOT NULL UNIQUE,
				datatype VARCHAR(20) NOT NULL,
				default_value TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_by VARCHAR(255)
			);

			CREATE INDEX idx_parameters_key ON parameters(key);
			CREATE INDEX idx_parameters_is_active ON parameters(is_active);

			-- Node families and their composition declarations
			CREATE TABLE node_families (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				is_deployed BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_by VARCHAR(255)
			);

			CREATE INDEX idx_node_families_name ON node_families(name);
			CREATE INDEX idx_node_families_is_deployed ON node_families(is_deployed);

			CREATE TABLE family_relationships (
				parent_id UUID NOT NULL REFERENCES node_families(id) ON DELETE CASCADE,
				child_id UUID NOT NULL REFERENCES node_families(id) ON DELETE CASCADE,
				"order" INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (parent_id, child_id)
			);

			-- Versions, their parameter overrides, and composition links
			CREATE TABLE node_versions (
				id UUID PRIMARY KEY,
				family_id UUID NOT NULL REFERENCES node_families(id) ON DELETE CASCADE,
				version INT NOT NULL,
				state VARCHAR(20) NOT NULL CHECK (state IN ('draft', 'published', 'archived')),
				script_ref TEXT NOT NULL DEFAULT '',
				changelog TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_by VARCHAR(255),
				UNIQUE (family_id, version)
			);

			CREATE INDEX idx_node_versions_family_state ON node_versions(family_id, state);
			CREATE INDEX idx_node_versions_state ON node_versions(state);

			CREATE TABLE node_parameters (
				version_id UUID NOT NULL REFERENCES node_versions(id) ON DELETE CASCADE,
				parameter_id UUID NOT NULL REFERENCES parameters(id) ON DELETE CASCADE,
				value TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (version_id, parameter_id)
			);

			CREATE TABLE node_version_links (
				parent_version_id UUID NOT NULL REFERENCES node_versions(id) ON DELETE CASCADE,
				child_version_id UUID NOT NULL REFERENCES node_versions(id) ON DELETE CASCADE,
				"order" INT NOT NULL DEFAULT 0,
				PRIMARY KEY (parent_version_id, child_version_id)
			);

			-- SubNode instances and their values
			CREATE TABLE subnodes (
				id UUID PRIMARY KEY,
				family_id UUID NOT NULL REFERENCES node_families(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				version INT NOT NULL DEFAULT 1,
				original_id UUID REFERENCES subnodes(id) ON DELETE SET NULL,
				is_deployed BOOLEAN NOT NULL DEFAULT false,
				description TEXT NOT NULL DEFAULT '',
				version_comment TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (family_id, name, version)
			);

			CREATE INDEX idx_subnodes_family_id ON subnodes(family_id);
			CREATE INDEX idx_subnodes_original_id ON subnodes(original_id);

			CREATE TABLE subnode_parameter_values (
				subnode_id UUID NOT NULL REFERENCES subnodes(id) ON DELETE CASCADE,
				parameter_id UUID NOT NULL REFERENCES parameters(id) ON DELETE CASCADE,
				value TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (subnode_id, parameter_id)
			);

			-- Execution records. Versions with executions are protected from
			-- deletion at the service layer; the FK has no cascade on purpose.
			CREATE TABLE node_executions (
				id UUID PRIMARY KEY,
				version_id UUID NOT NULL REFERENCES node_versions(id),
				status VARCHAR(20) NOT NULL CHECK (status IN ('queued', 'running', 'completed', 'failed', 'stopped')),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				log TEXT NOT NULL DEFAULT '',
				triggered_by VARCHAR(255),
				artifacts JSONB
			);

			CREATE INDEX idx_node_executions_version_status ON node_executions(version_id, status);
			CREATE INDEX idx_node_executions_status ON node_executions(status);
			CREATE INDEX idx_node_executions_started_at ON node_executions(started_at);
		`,
	}
}
