package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "procedure",
		Short: "Manage saved procedures",
	}

	put := &cobra.Command{
		Use:   "put",
		Short: "Create or replace a procedure",
		Long:  "Create or replace a procedure by name. Replacing keeps the procedure's ID.",
		Run:   runProcedurePut,
	}
	put.Flags().StringP("name", "n", "", "Procedure name (required)")
	put.Flags().StringArray("step", nil, "Step, repeatable and ordered")
	put.Flags().String("description", "", "Description")
	put.Flags().StringArray("condition", nil, "Condition, repeatable")
	put.Flags().String("meta", "", "JSON metadata")
	put.MarkFlagRequired("name")

	get := &cobra.Command{
		Use:   "get [name]",
		Short: "Print a procedure",
		Args:  cobra.ExactArgs(1),
		Run:   runProcedureGet,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List procedures, most recently updated first",
		Run:   runProcedureList,
	}
	list.Flags().IntP("limit", "l", 50, "Max results")
	list.Flags().Bool("docs", false, "Include steps, description and conditions")

	for _, c := range []*cobra.Command{put, get, list} {
		c.Flags().StringP("user", "u", "", "User ID (required)")
		c.MarkFlagRequired("user")
	}

	cmd.AddCommand(put, get, list)
	RootCmd.AddCommand(cmd)
}

func runProcedurePut(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")
	steps, _ := cmd.Flags().GetStringArray("step")
	description, _ := cmd.Flags().GetString("description")
	conditions, _ := cmd.Flags().GetStringArray("condition")
	meta, _ := cmd.Flags().GetString("meta")

	var metadata map[string]any
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			exitErr("parse meta", err)
		}
	}

	a := mustOpenApp()
	defer a.Close()

	ctx := cmd.Context()
	id, err := a.mem.AddProcedure(ctx, model.ProcedureDraft{
		UserID:      user,
		Name:        name,
		Steps:       steps,
		Description: description,
		Conditions:  conditions,
		Metadata:    metadata,
	})
	if err != nil {
		exitErr("procedure put", err)
	}
	pipeline.InvalidateProcedures(ctx, a.cache, user)
	printJSON(map[string]any{"id": id, "user_id": user, "name": name})
}

func runProcedureGet(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")

	a := mustOpenApp()
	defer a.Close()

	p, found, err := a.mem.GetProcedure(cmd.Context(), user, args[0])
	if err != nil {
		exitErr("procedure get", err)
	}
	if !found {
		exitErr("procedure get", fmt.Errorf("procedure %q not found", args[0]))
	}
	printJSON(p)
}

func runProcedureList(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	docs, _ := cmd.Flags().GetBool("docs")

	a := mustOpenApp()
	defer a.Close()

	procs, err := a.mem.ListProcedures(cmd.Context(), user, limit, docs)
	if err != nil {
		exitErr("procedure list", err)
	}
	printJSON(procs)
}
