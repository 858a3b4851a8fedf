package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	domain "celiaquia/internal/domain/celiaquia"
	"celiaquia/internal/errs"
)

// systemCoordinador seeds catalog data from init-db.
var systemCoordinador = domain.Actor{Username: "init-db", Role: domain.RoleCoordinador}

func actorFromFlags(cmd *cobra.Command) (domain.Actor, error) {
	username, _ := cmd.Flags().GetString("actor")
	rawRole, _ := cmd.Flags().GetString("role")
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Actor{}, err
	}
	actor := domain.Actor{Username: strings.TrimSpace(username), Role: role}
	if err := actor.Validate(); err != nil {
		return domain.Actor{}, errs.Wrap(err, "--actor and --role are required")
	}
	return actor, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errs.Wrap(err, "write json output")
	}
	return nil
}

func writef(cmd *cobra.Command, format string, args ...any) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...); err != nil {
		return errs.Wrap(err, "write output")
	}
	return nil
}
