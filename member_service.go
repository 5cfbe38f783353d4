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

package dynaquery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/dynaquery/database"
	"github.com/tomoncle/dynaquery/model"
	"github.com/tomoncle/dynaquery/predicate"
	"github.com/tomoncle/dynaquery/repository"
	"github.com/tomoncle/dynaquery/types"
	"github.com/tomoncle/dynaquery/utils"
	"github.com/uptrace/bun"
)

const serviceLoggerName = "DYNAQUERY"

// MemberService is the entry point for member searches, statistics and bulk
// changes.
type MemberService struct {
	Service[model.Member]
	db     dbProvider
	repo   *repository.MemberRepository
	teams  repository.Repository[model.Team]
	logger *logrus.Logger
}

// NewMemberService returns a member service over the global database.
func NewMemberService() *MemberService {
	return newMemberService(database.GetDB)
}

// NewMemberServiceWithDB returns a member service bound to db.
func NewMemberServiceWithDB(db *bun.DB) *MemberService {
	return newMemberService(func() *bun.DB { return db })
}

func newMemberService(db dbProvider) *MemberService {
	repo := repository.NewMemberRepository()
	return &MemberService{
		Service: &baseServiceImpl[model.Member]{db: db, repo: repo},
		db:      db,
		repo:    repo,
		teams:   repository.NewRepository[model.Team](),
		logger:  utils.GetLogger(serviceLoggerName),
	}
}

func (s *MemberService) traced(op string, start time.Time, fields logrus.Fields, err error) {
	entry := s.logger.WithFields(fields).WithField("op", op).WithField("elapsed", utils.ElapsedSince(start))
	if err != nil {
		entry.WithError(err).Warn("Member operation failed")
		return
	}
	entry.Debug("Member operation finished")
}

// Search returns the member/team rows matching criteria.
func (s *MemberService) Search(ctx context.Context, criteria model.MemberSearchCondition) ([]model.MemberTeamDto, error) {
	start := time.Now()
	rows, err := query(ctx, s.db, func(ctx context.Context) ([]model.MemberTeamDto, error) {
		return s.repo.Search(ctx, criteria)
	})
	s.traced("search", start, logrus.Fields{"criteria": criteria.String(), "rows": len(rows)}, err)
	return rows, err
}

// SearchWhere returns the member/team rows matching cond in the given order.
func (s *MemberService) SearchWhere(ctx context.Context, cond predicate.Condition, orders ...types.Order) ([]model.MemberTeamDto, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]model.MemberTeamDto, error) {
		return s.repo.SearchWhere(ctx, cond, orders...)
	})
}

// SearchJoinOn returns the member/team rows matching cond, with team columns
// only for teams satisfying on.
func (s *MemberService) SearchJoinOn(ctx context.Context, on types.Optional[predicate.Fragment], cond predicate.Condition, orders ...types.Order) ([]model.MemberTeamDto, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]model.MemberTeamDto, error) {
		return s.repo.SearchJoinOn(ctx, on, cond, orders...)
	})
}

// SearchPaged returns one ordered page of member/team rows.
func (s *MemberService) SearchPaged(ctx context.Context, criteria model.MemberSearchCondition, page *types.PageRequest) ([]model.MemberTeamDto, error) {
	start := time.Now()
	rows, err := query(ctx, s.db, func(ctx context.Context) ([]model.MemberTeamDto, error) {
		return s.repo.SearchPaged(ctx, criteria, page)
	})
	s.traced("search-paged", start, logrus.Fields{"criteria": criteria.String(), "rows": len(rows)}, err)
	return rows, err
}

// SearchPage returns one ordered page with the total count.
func (s *MemberService) SearchPage(ctx context.Context, criteria model.MemberSearchCondition, page *types.PageRequest) (*types.Pagination[model.MemberTeamDto], error) {
	return query(ctx, s.db, func(ctx context.Context) (*types.Pagination[model.MemberTeamDto], error) {
		return s.repo.SearchPage(ctx, criteria, page)
	})
}

func (s *MemberService) SearchMembers(ctx context.Context, criteria model.MemberSearchCondition) ([]model.MemberDto, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]model.MemberDto, error) {
		return s.repo.SearchMembers(ctx, criteria)
	})
}

func (s *MemberService) FindByID(ctx context.Context, id int64) (*model.Member, error) {
	return query(ctx, s.db, func(ctx context.Context) (*model.Member, error) {
		return s.repo.FindByID(ctx, id)
	})
}

func (s *MemberService) FindWithTeam(ctx context.Context, cond predicate.Condition, orders ...types.Order) ([]*model.Member, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]*model.Member, error) {
		return s.repo.FindWithTeam(ctx, cond, orders...)
	})
}

func (s *MemberService) Stats(ctx context.Context, cond predicate.Condition) (*model.AgeStats, error) {
	return query(ctx, s.db, func(ctx context.Context) (*model.AgeStats, error) {
		return s.repo.Stats(ctx, cond)
	})
}

func (s *MemberService) StatsByTeam(ctx context.Context, cond predicate.Condition) ([]model.TeamAgeStats, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]model.TeamAgeStats, error) {
		return s.repo.StatsByTeam(ctx, cond)
	})
}

func (s *MemberService) AgeBands(ctx context.Context, cond predicate.Condition) ([]model.MemberAgeBand, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]model.MemberAgeBand, error) {
		return s.repo.AgeBands(ctx, cond)
	})
}

func (s *MemberService) WithAverageAge(ctx context.Context, cond predicate.Condition) ([]model.MemberAgeAvg, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]model.MemberAgeAvg, error) {
		return s.repo.WithAverageAge(ctx, cond)
	})
}

func (s *MemberService) Labels(ctx context.Context, cond predicate.Condition, format model.LabelFormat) ([]model.MemberLabel, error) {
	return query(ctx, s.db, func(ctx context.Context) ([]model.MemberLabel, error) {
		return s.repo.Labels(ctx, cond, format)
	})
}

// UpdateWhere applies the assignments to the members matching cond. When ctx
// carries a unit of work, its managed members are stale until the result is
// invalidated.
func (s *MemberService) UpdateWhere(ctx context.Context, cond predicate.Condition, assignments ...predicate.Assignment) (*repository.BulkResult, error) {
	start := time.Now()
	res, err := query(ctx, s.db, func(ctx context.Context) (*repository.BulkResult, error) {
		return s.repo.UpdateWhere(ctx, cond, assignments...)
	})
	s.traced("update-where", start, logrus.Fields{"condition": cond.String()}, err)
	return res, err
}

// DeleteWhere deletes the members matching cond.
func (s *MemberService) DeleteWhere(ctx context.Context, cond predicate.Condition) (*repository.BulkResult, error) {
	start := time.Now()
	res, err := query(ctx, s.db, func(ctx context.Context) (*repository.BulkResult, error) {
		return s.repo.DeleteWhere(ctx, cond)
	})
	s.traced("delete-where", start, logrus.Fields{"condition": cond.String()}, err)
	return res, err
}

// InitSampleData creates teamA and teamB and n members named member0 to
// member<n-1>, where member i is i years old and belongs to teamA when i is
// even and to teamB otherwise.
func (s *MemberService) InitSampleData(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("member count must not be negative: %d", n)
	}
	start := time.Now()
	err := inTx(ctx, s.db, func(ctx context.Context) error {
		teamA, teamB := model.NewTeam("teamA"), model.NewTeam("teamB")
		if err := s.teams.Create(ctx, teamA, teamB); err != nil {
			return fmt.Errorf("failed to create teams: %w", err)
		}
		if n == 0 {
			return nil
		}
		members := make([]*model.Member, n)
		for i := range members {
			team := teamA
			if i%2 == 1 {
				team = teamB
			}
			members[i] = model.NewMember(fmt.Sprintf("member%d", i), i, team)
		}
		if err := s.repo.Create(ctx, members...); err != nil {
			return fmt.Errorf("failed to create members: %w", err)
		}
		return nil
	})
	s.traced("init", start, logrus.Fields{"members": n}, err)
	return err
}
