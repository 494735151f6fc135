// Command grantrole assigns or removes roles from the command line.
//
//	grantrole [-exclusive] [-revoke] <email-or-id> <role>
//	grantrole -seed
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"anything-world/internal/config"
	"anything-world/internal/database"
	"anything-world/internal/logger"
	"anything-world/internal/model"
	"anything-world/internal/repository"
	"anything-world/internal/service"
)

func main() {
	exclusive := flag.Bool("exclusive", false, "revoke the role from every other user")
	revoke := flag.Bool("revoke", false, "remove the role instead of granting it")
	seed := flag.Bool("seed", false, "create default roles and promote ADMIN_EMAIL")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: grantrole [-exclusive] [-revoke] <email-or-id> <role>\n       grantrole -seed\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	slog.SetDefault(logger.New(os.Stderr, false, slog.LevelInfo))

	if err := run(*seed, *revoke, *exclusive, flag.Args()); err != nil {
		slog.Error("grantrole failed", "error", err)
		os.Exit(1)
	}
}

func run(seed bool, revoke bool, exclusive bool, args []string) error {
	if !seed && len(args) != 2 {
		flag.Usage()
		return fmt.Errorf("expected <email-or-id> <role>, got %d arguments", len(args))
	}

	databaseURL, adminEmail, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.RunMigrations(databaseURL); err != nil {
		return err
	}

	db, err := database.New(ctx, databaseURL, 2, 1)
	if err != nil {
		return err
	}
	defer db.Close()

	users := repository.NewUserRepository(db.Pool)
	audit := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	roles := service.NewRoleService(repository.NewRoleRepository(db.Pool), users, audit)
	actor := model.AuditActor{Email: "cli"}

	if seed {
		if err := roles.EnsureDefaults(ctx); err != nil {
			return err
		}
		if err := roles.PromoteAdminEmail(ctx, adminEmail); err != nil {
			return err
		}
		slog.Info("roles seeded", "admin_email", adminEmail)
		return nil
	}

	ref, role := args[0], args[1]

	var change service.RoleChange
	if revoke {
		change, err = roles.Revoke(ctx, actor, ref, role)
	} else {
		change, err = roles.Grant(ctx, actor, ref, role, exclusive)
	}
	if err != nil {
		return err
	}

	slog.Info("role updated",
		"user_id", change.UserID,
		"email", change.Email,
		"role", change.Role,
		"revoked", revoke,
		"changed", change.Changed,
		"revoked_from_others", change.RevokedFor,
	)
	return nil
}
