package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/auth"
)

var (
	tokenRoom   string
	tokenPlayer int64
	tokenAdmin  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an admin or seat token with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := auth.NewJWTManager(cfg.JWTSecret)
		var (
			token string
			err   error
		)
		switch {
		case tokenRoom != "" && tokenPlayer > 0:
			token, err = mgr.IssueSeat(tokenRoom, tokenPlayer)
		case tokenRoom == "" && tokenPlayer == 0:
			token, err = mgr.IssueAdmin(tokenAdmin)
		default:
			return errors.New("--room and --player go together")
		}
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRoom, "room", "", "room id for a seat token")
	tokenCmd.Flags().Int64Var(&tokenPlayer, "player", 0, "player id for a seat token")
	tokenCmd.Flags().StringVar(&tokenAdmin, "name", "turnsim", "subject of an admin token")
}
