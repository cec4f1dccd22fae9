package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"gorm.io/gorm"
)

type AccountGroup struct {
	ID        int           `gorm:"primary_key" json:"id"`
	Name      string        `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Nature    AccountNature `gorm:"size:20;not null" json:"nature"`
	ParentId  *int          `gorm:"index" json:"parent_id"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccountGroup struct {
	Name     string `json:"name" validate:"required,max=100"`
	Nature   string `json:"nature" validate:"required"`
	ParentId *int   `json:"parent_id"`
}

// GroupTree is a flat view of every account group with parent/child indexes.
// Groups reference each other by id only.
type GroupTree struct {
	groups   []AccountGroup
	index    map[int]int
	byName   map[string]int
	children map[int][]int
}

func NewGroupTree(groups []AccountGroup) *GroupTree {
	t := &GroupTree{
		groups:   groups,
		index:    make(map[int]int, len(groups)),
		byName:   make(map[string]int, len(groups)),
		children: make(map[int][]int),
	}
	for i, g := range groups {
		t.index[g.ID] = i
		t.byName[g.Name] = i
		if g.ParentId != nil {
			t.children[*g.ParentId] = append(t.children[*g.ParentId], g.ID)
		}
	}
	return t
}

func (t *GroupTree) Get(id int) (AccountGroup, bool) {
	i, ok := t.index[id]
	if !ok {
		return AccountGroup{}, false
	}
	return t.groups[i], true
}

func (t *GroupTree) ByName(name string) (AccountGroup, bool) {
	i, ok := t.byName[name]
	if !ok {
		return AccountGroup{}, false
	}
	return t.groups[i], true
}

// Ancestors walks from the group's parent up to its root.
func (t *GroupTree) Ancestors(id int) []AccountGroup {
	var result []AccountGroup
	seen := map[int]bool{id: true}
	g, ok := t.Get(id)
	for ok && g.ParentId != nil && !seen[*g.ParentId] {
		seen[*g.ParentId] = true
		g, ok = t.Get(*g.ParentId)
		if ok {
			result = append(result, g)
		}
	}
	return result
}

// Descendants returns the ids of every group below id, breadth first, excluding id itself.
func (t *GroupTree) Descendants(id int) []int {
	var result []int
	seen := map[int]bool{id: true}
	queue := []int{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range t.children[current] {
			if seen[child] {
				continue
			}
			seen[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result
}

// WouldCycle reports whether making parentId the parent of id closes a loop.
func (t *GroupTree) WouldCycle(id int, parentId int) bool {
	if id == parentId {
		return true
	}
	for _, a := range t.Ancestors(parentId) {
		if a.ID == id {
			return true
		}
	}
	return false
}

func LoadGroupTree(ctx context.Context, tx *gorm.DB) (*GroupTree, error) {
	var groups []AccountGroup
	if err := tx.WithContext(ctx).Order("id").Find(&groups).Error; err != nil {
		return nil, err
	}
	return NewGroupTree(groups), nil
}

// GetAccountGroupByName returns a ConfigurationError when the group is not seeded.
func GetAccountGroupByName(ctx context.Context, tx *gorm.DB, name string) (*AccountGroup, error) {
	var group AccountGroup
	err := tx.WithContext(ctx).Where("name = ?", name).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ConfigurationError{Kind: "account group", Name: name}
	}
	if err != nil {
		return nil, err
	}
	invalidateAccountGroupList()
	return &group, nil
}

func (input *NewAccountGroup) validate(ctx context.Context, tx *gorm.DB, id int) (AccountNature, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		for field, tag := range utils.ProcessValidationErrors(err) {
			return "", NewValidationError(field, "failed on "+tag)
		}
		return "", NewValidationError("", err.Error())
	}
	nature, err := ParseAccountNature(input.Nature)
	if err != nil {
		return "", NewValidationError("nature", err.Error())
	}
	if input.ParentId == nil {
		return nature, nil
	}
	tree, err := LoadGroupTree(ctx, tx)
	if err != nil {
		return "", err
	}
	if _, ok := tree.Get(*input.ParentId); !ok {
		return "", NewValidationError("parent_id", "parent group does not exist")
	}
	if id > 0 && tree.WouldCycle(id, *input.ParentId) {
		return "", NewValidationError("parent_id", "group cannot be placed under itself or its descendants")
	}
	return nature, nil
}

func CreateAccountGroup(ctx context.Context, input *NewAccountGroup) (*AccountGroup, error) {
	db := config.GetDB()
	var group AccountGroup

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nature, err := input.validate(ctx, tx, 0)
		if err != nil {
			return err
		}
		group = AccountGroup{
			Name:     input.Name,
			Nature:   nature,
			ParentId: input.ParentId,
		}
		if err := tx.Create(&group).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return NewValidationError("name", "account group already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateAccountGroupList()
	return &group, nil
}

func UpdateAccountGroup(ctx context.Context, id int, input *NewAccountGroup) (*AccountGroup, error) {
	db := config.GetDB()
	var group AccountGroup

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&group, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		nature, err := input.validate(ctx, tx, id)
		if err != nil {
			return err
		}
		group.Name = input.Name
		group.Nature = nature
		group.ParentId = input.ParentId
		if err := tx.Save(&group).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return NewValidationError("name", "account group already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateAccountGroupList()
	return &group, nil
}

const accountGroupListCacheKey = "AccountGroupList"

// GetAccountGroups lists the chart of accounts, served from redis when cached.
func GetAccountGroups(ctx context.Context) ([]*AccountGroup, error) {
	var results []*AccountGroup
	if exists, err := config.GetRedisObject(accountGroupListCacheKey, &results); err == nil && exists {
		return results, nil
	}

	db := config.GetDB()
	results = nil
	if err := db.WithContext(ctx).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(accountGroupListCacheKey, results, utils.GetCacheLifespan()); err != nil {
		config.GetLogger().WithField("key", accountGroupListCacheKey).Warn("caching account groups: " + err.Error())
	}
	return results, nil
}

func invalidateAccountGroupList() {
	if err := config.RemoveRedisKey(accountGroupListCacheKey); err != nil {
		config.GetLogger().WithField("key", accountGroupListCacheKey).Warn("invalidating account groups: " + err.Error())
	}
}
