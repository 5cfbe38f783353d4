/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tomoncle/dynaquery"
	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/types"
	"github.com/tomoncle/dynaquery/utils"
)

type app struct {
	configFile string
	svc        *dynaquery.MemberService
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "dynaquery",
		Short:         "Search, aggregate and bulk-edit members",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return database.CloseDB()
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default ./dynaquery.yaml)")
	root.AddCommand(
		a.initCommand(),
		a.searchCommand(),
		a.statsCommand(),
		a.bumpAgeCommand(),
		a.purgeCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configFile)
	if err != nil {
		return err
	}
	utils.ConfigureConsoleOutput(cmd.ErrOrStderr())
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	utils.ConfigureLogLevel(cfg.Log.Level)

	if _, err := database.InitDBContext(cmd.Context(), cfg.ConfigLoader()); err != nil {
		return err
	}
	a.svc = dynaquery.NewMemberService()
	return nil
}

// addCriteriaFlags registers the member search flags on cmd.
func addCriteriaFlags(cmd *cobra.Command) {
	cmd.Flags().String("username", "", "exact username")
	cmd.Flags().String("team", "", "exact team name")
	cmd.Flags().Int("age-goe", 0, "minimum age, inclusive")
	cmd.Flags().Int("age-loe", 0, "maximum age, inclusive")
}

// criteriaFromFlags builds the search condition from the flags that were set;
// unset flags stay absent, so --age-goe 0 still filters.
func criteriaFromFlags(cmd *cobra.Command) (model.MemberSearchCondition, error) {
	flags := cmd.Flags()
	var opts []model.SearchOption
	if flags.Changed("username") {
		v, err := flags.GetString("username")
		if err != nil {
			return model.MemberSearchCondition{}, err
		}
		opts = append(opts, model.WithUsername(v))
	}
	if flags.Changed("team") {
		v, err := flags.GetString("team")
		if err != nil {
			return model.MemberSearchCondition{}, err
		}
		opts = append(opts, model.WithTeamName(v))
	}
	if flags.Changed("age-goe") {
		v, err := flags.GetInt("age-goe")
		if err != nil {
			return model.MemberSearchCondition{}, err
		}
		opts = append(opts, model.WithAgeGoe(v))
	}
	if flags.Changed("age-loe") {
		v, err := flags.GetInt("age-loe")
		if err != nil {
			return model.MemberSearchCondition{}, err
		}
		opts = append(opts, model.WithAgeLoe(v))
	}
	return model.NewMemberSearchCondition(opts...), nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) initCommand() *cobra.Command {
	var members int
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the tables and seed sample members",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := database.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			if err := a.svc.InitSampleData(cmd.Context(), members); err != nil {
				return err
			}
			return writeJSON(cmd, map[string]int{"members": members})
		},
	}
	cmd.Flags().IntVar(&members, "members", 100, "number of sample members")
	return cmd
}

func (a *app) searchCommand() *cobra.Command {
	var (
		sorts  []string
		offset int
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search members joined with their team",
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := criteriaFromFlags(cmd)
			if err != nil {
				return err
			}
			orders := make([]types.Order, 0, len(sorts))
			for _, s := range sorts {
				o, err := types.ParseOrder(s)
				if err != nil {
					return err
				}
				orders = append(orders, o)
			}
			paged := len(orders) > 0 || cmd.Flags().Changed("offset") || cmd.Flags().Changed("limit")
			if !paged {
				rows, err := a.svc.Search(cmd.Context(), criteria)
				if err != nil {
					return err
				}
				return writeJSON(cmd, rows)
			}
			page, err := a.svc.SearchPage(cmd.Context(), criteria, types.NewPageRequest(offset, limit, orders...))
			if err != nil {
				return err
			}
			return writeJSON(cmd, page)
		},
	}
	addCriteriaFlags(cmd)
	cmd.Flags().StringSliceVar(&sorts, "sort", nil, "sort as field:dir, repeatable (member_id, username, age, team_id, team_name)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip, requires --sort")
	cmd.Flags().IntVar(&limit, "limit", types.DefaultLimit, "page size, requires --sort")
	return cmd
}

func (a *app) statsCommand() *cobra.Command {
	var byTeam, bands bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate member ages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := criteriaFromFlags(cmd)
			if err != nil {
				return err
			}
			cond := predicate.ForMember(criteria)
			switch {
			case byTeam:
				stats, err := a.svc.StatsByTeam(cmd.Context(), cond)
				if err != nil {
					return err
				}
				return writeJSON(cmd, stats)
			case bands:
				rows, err := a.svc.AgeBands(cmd.Context(), cond)
				if err != nil {
					return err
				}
				return writeJSON(cmd, rows)
			default:
				stats, err := a.svc.Stats(cmd.Context(), cond)
				if err != nil {
					return err
				}
				return writeJSON(cmd, stats)
			}
		},
	}
	addCriteriaFlags(cmd)
	cmd.Flags().BoolVar(&byTeam, "by-team", false, "group by team")
	cmd.Flags().BoolVar(&bands, "bands", false, "label each member with its age band")
	cmd.MarkFlagsMutuallyExclusive("by-team", "bands")
	return cmd
}

func (a *app) bumpAgeCommand() *cobra.Command {
	var by int
	cmd := &cobra.Command{
		Use:   "bump-age",
		Short: "Add to the age of every matching member in one statement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := criteriaFromFlags(cmd)
			if err != nil {
				return err
			}
			res, err := a.svc.UpdateWhere(cmd.Context(), predicate.ForMember(criteria), predicate.Add("age", by))
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]int64{"rows_affected": res.RowsAffected})
		},
	}
	addCriteriaFlags(cmd)
	cmd.Flags().IntVar(&by, "by", 1, "years to add, may be negative")
	return cmd
}

var errPurgeEverything = errors.New("refusing to delete every member without --all")

func (a *app) purgeCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every matching member in one statement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := criteriaFromFlags(cmd)
			if err != nil {
				return err
			}
			if criteria.IsEmpty() && !all {
				return errPurgeEverything
			}
			res, err := a.svc.DeleteWhere(cmd.Context(), predicate.ForMember(criteria))
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			return writeJSON(cmd, map[string]int64{"rows_affected": res.RowsAffected})
		},
	}
	addCriteriaFlags(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "allow deleting every member when no criteria is given")
	return cmd
}
