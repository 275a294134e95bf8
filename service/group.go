package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"smartpay/db/db"
	"smartpay/ledger"
	"smartpay/libs/diff"
	"smartpay/mq/mq"
)

// Collisions on six random characters are rare, retrying a handful of
// times is plenty.
const maxTripCodeAttempts = 5

// CreateGroupInput carries everything needed to open a new trip group.
// CreatorName defaults to "Creator" when left empty.
type CreateGroupInput struct {
	Name        string
	Description string
	CreatedBy   string
	CreatorName string
	PhoneNumber string
}

// JoinGroupInput identifies the user admitted through a trip code.
type JoinGroupInput struct {
	TripCode    string
	UserID      string
	Name        string
	PhoneNumber string
}

// AddMemberInput is an admin adding someone to the roster directly,
// typically a traveller without an account of their own.
type AddMemberInput struct {
	GroupID     uuid.UUID
	UserID      string
	Name        string
	PhoneNumber string
	IsAdmin     bool
}

// CreateGroup opens a new group with a fresh trip code and registers the
// creator as its first member and admin.
func (s *GroupService) CreateGroup(input CreateGroupInput) (*db.GroupInfo, *ledger.Member, error) {
	if input.Name == "" {
		return nil, nil, fmt.Errorf("%w: group name is required", ledger.ErrValidation)
	}
	if input.CreatedBy == "" {
		return nil, nil, fmt.Errorf("%w: creator user ID is required", ledger.ErrValidation)
	}
	creatorName := input.CreatorName
	if creatorName == "" {
		creatorName = "Creator"
	}

	for attempt := 0; attempt < maxTripCodeAttempts; attempt++ {
		code, err := NewTripCode()
		if err != nil {
			return nil, nil, err
		}

		info := &db.GroupInfo{
			ID:          uuid.New(),
			Name:        input.Name,
			Description: input.Description,
			CreatedBy:   input.CreatedBy,
			TripCode:    code,
		}
		creator := &ledger.Member{
			ID:          uuid.New(),
			GroupID:     info.ID,
			UserID:      input.CreatedBy,
			Name:        creatorName,
			PhoneNumber: input.PhoneNumber,
			IsAdmin:     true,
		}

		err = s.store.CreateGroup(info, creator)
		if errors.Is(err, ledger.ErrConflict) {
			continue // trip code collision, roll a new one
		}
		if err != nil {
			return nil, nil, err
		}
		return info, creator, nil
	}
	return nil, nil, fmt.Errorf("%w: could not find a free trip code", ledger.ErrConflict)
}

// GetGroup returns one group's metadata.
func (s *GroupService) GetGroup(id uuid.UUID) (*db.GroupInfo, error) {
	return s.store.GetGroupInfo(id)
}

// ListGroupsForUser returns every group the user belongs to.
func (s *GroupService) ListGroupsForUser(userID string) ([]db.GroupInfo, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ledger.ErrValidation)
	}
	return s.store.ListGroupsForUser(userID)
}

// Members returns the group roster.
func (s *GroupService) Members(groupID uuid.UUID) ([]ledger.Member, error) {
	if _, err := s.store.GetGroupInfo(groupID); err != nil {
		return nil, err
	}
	return s.store.GetMembers(groupID)
}

// JoinByTripCode admits a user into the group behind the code. Joining a
// group the user already belongs to returns the existing membership.
func (s *GroupService) JoinByTripCode(input JoinGroupInput) (*db.GroupInfo, *ledger.Member, error) {
	code := NormalizeTripCode(input.TripCode)
	if code == "" {
		return nil, nil, fmt.Errorf("%w: trip code is required", ledger.ErrValidation)
	}
	if input.UserID == "" {
		return nil, nil, fmt.Errorf("%w: user ID is required", ledger.ErrValidation)
	}
	if input.Name == "" {
		return nil, nil, fmt.Errorf("%w: member name is required", ledger.ErrValidation)
	}

	info, err := s.store.GetGroupByTripCode(code)
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.store.GetMemberByUser(info.ID, input.UserID)
	if err == nil {
		return info, existing, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, nil, err
	}

	member := &ledger.Member{
		ID:          uuid.New(),
		GroupID:     info.ID,
		UserID:      input.UserID,
		Name:        input.Name,
		PhoneNumber: input.PhoneNumber,
		IsAdmin:     false,
	}
	if err := s.store.AddMember(member); err != nil {
		return nil, nil, err
	}

	s.publishMemberJoined(member)
	return info, member, nil
}

// AddMember lets an admin put someone on the roster without a trip code.
func (s *GroupService) AddMember(actorMemberID uuid.UUID, input AddMemberInput) (*ledger.Member, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: member name is required", ledger.ErrValidation)
	}
	if _, err := s.requireAdmin(input.GroupID, actorMemberID); err != nil {
		return nil, err
	}

	if input.UserID != "" {
		if _, err := s.store.GetMemberByUser(input.GroupID, input.UserID); err == nil {
			return nil, fmt.Errorf("%w: user is already a member of this group", ledger.ErrConflict)
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
	}

	member := &ledger.Member{
		ID:          uuid.New(),
		GroupID:     input.GroupID,
		UserID:      input.UserID,
		Name:        input.Name,
		PhoneNumber: input.PhoneNumber,
		IsAdmin:     input.IsAdmin,
	}
	if err := s.store.AddMember(member); err != nil {
		return nil, err
	}

	s.publishMemberJoined(member)
	return member, nil
}

// UpdateGroupInfo changes a group's name and description. The trip code,
// creator and ID never change. The published event carries the field
// level changelog.
func (s *GroupService) UpdateGroupInfo(actorMemberID uuid.UUID, groupID uuid.UUID, name, description string) (*db.GroupInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ledger.ErrValidation)
	}

	current, err := s.store.GetGroupInfo(groupID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(groupID, actorMemberID); err != nil {
		return nil, err
	}

	updated := *current
	updated.Name = name
	updated.Description = description

	changelog, err := diff.ChangelogFor(*current, updated)
	if err != nil {
		return nil, fmt.Errorf("failed to diff group info: %w", err)
	}
	if len(changelog) == 0 {
		return current, nil
	}

	if err := s.store.UpdateGroupInfo(&updated); err != nil {
		return nil, err
	}

	if s.mq != nil {
		publish(s.mq.GetGroupMessageQueue(mq.ActionUpdate), mq.GroupMessage{
			GroupID:   updated.ID,
			Name:      updated.Name,
			Changelog: changelog,
		})
	}
	return &updated, nil
}

// DeleteGroup removes the group with all members, expenses and splits.
func (s *GroupService) DeleteGroup(actorMemberID uuid.UUID, groupID uuid.UUID) error {
	info, err := s.store.GetGroupInfo(groupID)
	if err != nil {
		return err
	}
	if _, err := s.requireAdmin(groupID, actorMemberID); err != nil {
		return err
	}

	if err := s.store.DeleteGroup(groupID); err != nil {
		return err
	}

	if s.mq != nil {
		publish(s.mq.GetGroupMessageQueue(mq.ActionDelete), mq.GroupMessage{
			GroupID: info.ID,
			Name:    info.Name,
		})
	}
	return nil
}

// requireMember resolves the actor and checks group membership.
func (s *GroupService) requireMember(groupID, actorMemberID uuid.UUID) (*ledger.Member, error) {
	actor, err := s.store.GetMember(actorMemberID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: actor is not a member of this group", ledger.ErrPermission)
	}
	if err != nil {
		return nil, err
	}
	if actor.GroupID != groupID {
		return nil, fmt.Errorf("%w: actor is not a member of this group", ledger.ErrPermission)
	}
	return actor, nil
}

// requireAdmin resolves the actor and checks group admin rights.
func (s *GroupService) requireAdmin(groupID, actorMemberID uuid.UUID) (*ledger.Member, error) {
	actor, err := s.requireMember(groupID, actorMemberID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only a group admin may do this", ledger.ErrPermission)
	}
	return actor, nil
}

func (s *GroupService) publishMemberJoined(member *ledger.Member) {
	if s.mq == nil {
		return
	}
	publish(s.mq.GetMemberMessageQueue(mq.ActionCreate), mq.MemberMessage{
		GroupID:  member.GroupID,
		MemberID: member.ID,
		Name:     member.Name,
		IsAdmin:  member.IsAdmin,
	})
}
