package database

// Driver registrations for every store the gateway can open.
import (
	_ "github.com/go-sql-driver/mysql"    // mysql
	_ "github.com/jackc/pgx/v5/stdlib"    // pgx
	_ "github.com/microsoft/go-mssqldb"   // sqlserver
	_ "modernc.org/sqlite"                // sqlite
)
