package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInitTables, downInitTables)
}

func upInitTables(ctx context.Context, tx *sql.Tx) error {
	// Create trip_groups table
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE trip_groups (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description VARCHAR(1024) NOT NULL DEFAULT '',
			created_by VARCHAR(255) NOT NULL,
			trip_code VARCHAR(16) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	// Create group_members table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE group_members (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			name VARCHAR(255) NOT NULL,
			phone_number VARCHAR(32) NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_group_members_group
				FOREIGN KEY(group_id)
				REFERENCES trip_groups(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	// One member row per user account per group; members added without an
	// account have an empty user_id and are exempt.
	_, err = tx.ExecContext(ctx, `
		CREATE UNIQUE INDEX idx_group_members_group_user
			ON group_members(group_id, user_id)
			WHERE user_id <> '';
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_group_members_group_id ON group_members(group_id);`)
	if err != nil {
		return err
	}

	// Create expenses table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expenses (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL,
			description VARCHAR(255) NOT NULL,
			amount NUMERIC(10,2) NOT NULL CHECK (amount > 0),
			paid_by UUID NOT NULL,
			split_type VARCHAR(16) NOT NULL,
			expense_date TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_expenses_group
				FOREIGN KEY(group_id)
				REFERENCES trip_groups(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE,
			CONSTRAINT fk_expenses_payer
				FOREIGN KEY(paid_by)
				REFERENCES group_members(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_expenses_group_id ON expenses(group_id);`)
	if err != nil {
		return err
	}

	// Create expense_splits table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expense_splits (
			id UUID PRIMARY KEY,
			expense_id UUID NOT NULL,
			member_id UUID NOT NULL,
			share_amount NUMERIC(10,2) NOT NULL CHECK (share_amount >= 0),
			is_paid BOOLEAN NOT NULL DEFAULT FALSE,
			paid_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_expense_splits_expense
				FOREIGN KEY(expense_id)
				REFERENCES expenses(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE,
			CONSTRAINT fk_expense_splits_member
				FOREIGN KEY(member_id)
				REFERENCES group_members(id)
				ON UPDATE CASCADE
				ON DELETE CASCADE
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_expense_splits_expense_id ON expense_splits(expense_id);`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_expense_splits_member_id ON expense_splits(member_id);`)
	return err
}

func downInitTables(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS expense_splits;`,
		`DROP TABLE IF EXISTS expenses;`,
		`DROP TABLE IF EXISTS group_members;`,
		`DROP TABLE IF EXISTS trip_groups;`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
