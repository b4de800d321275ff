// Package db provides database connection and transaction management.
//
// This package is responsible for:
//   - PostgreSQL connection pool initialization
//   - Connection health checks
//   - Bounded transactions (isolation level, lock wait and overall timeout)
//   - Embedded schema migrations applied with goose
//
// Example usage:
//
//	pg, err := db.New(ctx, cfg.Database, log)
//	if err != nil {
//	    return err
//	}
//	defer pg.Close()
//
//	if cfg.Database.Migrate {
//	    if err := db.Migrate(ctx, pg, log); err != nil {
//	        return err
//	    }
//	}
package db
