package feedback

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/entity"
	"github.com/joseph-ayodele/cv-autofill/internal/llm"
	"github.com/joseph-ayodele/cv-autofill/internal/normalize"
)

// AddFieldSynonym teaches the tenant that label means field.
func (s *Service) AddFieldSynonym(ctx context.Context, op common.Operator, label, field string) error {
	label, field = s.clean(label), strings.TrimSpace(field)
	v := common.NewValidator().
		Field("label", label, common.Required, common.MaxLength(200)).
		Field("field", field, common.TargetField)
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}
	if strings.TrimSpace(op.UserID) == "" {
		return common.NewAppError(common.CodeUnauthorized, "operator required", common.ErrUnauthorized)
	}
	syn := entity.TenantFieldSynonym{
		TenantID:        s.Tenant(op),
		SourceLabel:     label,
		NormalizedLabel: normalize.FoldKey(label),
		CanonicalField:  field,
		CreatedBy:       op.UserID,
	}
	if err := s.repo.UpsertFieldSynonym(ctx, syn); err != nil {
		s.log.Error("feedback.synonym.persist_failed", zap.String("label", label), zap.Error(err))
		return common.NewAppError(common.CodePersistenceFailed, "store synonym", err)
	}
	s.log.Info("feedback.synonym.saved", zap.String("tenant_id", syn.TenantID), zap.String("label", label), zap.String("field", field))
	return nil
}

// AddSkillAlias maps a tenant-specific spelling onto a canonical skill.
func (s *Service) AddSkillAlias(ctx context.Context, op common.Operator, alias, skill string) error {
	alias, skill = s.clean(alias), s.clean(skill)
	v := common.NewValidator().
		Field("alias", alias, common.Required, common.MaxLength(200)).
		Field("skill", skill, common.Required, common.MaxLength(200))
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}
	if strings.TrimSpace(op.UserID) == "" {
		return common.NewAppError(common.CodeUnauthorized, "operator required", common.ErrUnauthorized)
	}
	a := entity.TenantSkillAlias{
		TenantID:        s.Tenant(op),
		Alias:           alias,
		NormalizedAlias: normalize.CaseKey(alias),
		CanonicalSkill:  skill,
		CreatedBy:       op.UserID,
	}
	if err := s.repo.UpsertSkillAlias(ctx, a); err != nil {
		s.log.Error("feedback.alias.persist_failed", zap.String("alias", alias), zap.Error(err))
		return common.NewAppError(common.CodePersistenceFailed, "store skill alias", err)
	}
	return nil
}

// LearningContext gathers the tenant's dictionaries and recent corrections
// for the extraction engine. Lookup failures degrade to an empty context.
func (s *Service) LearningContext(ctx context.Context, tenantID string) llm.LearningContext {
	tenantID = s.tenantOrDefault(tenantID)
	lc := llm.LearningContext{
		FieldSynonyms: map[string]string{},
		SkillAliases:  map[string]string{},
	}
	if syns, err := s.repo.ListFieldSynonyms(ctx, tenantID); err != nil {
		s.log.Warn("feedback.learning.synonyms_failed", zap.Error(err))
	} else {
		for _, syn := range syns {
			lc.FieldSynonyms[syn.NormalizedLabel] = syn.CanonicalField
		}
	}
	if aliases, err := s.repo.ListSkillAliases(ctx, tenantID); err != nil {
		s.log.Warn("feedback.learning.aliases_failed", zap.Error(err))
	} else {
		for _, a := range aliases {
			lc.SkillAliases[a.Alias] = a.CanonicalSkill
		}
	}
	if s.cfg.CorrectionExamples > 0 {
		recs, err := s.repo.RecentCorrections(ctx, tenantID, s.cfg.CorrectionExamples)
		if err != nil {
			s.log.Warn("feedback.learning.corrections_failed", zap.Error(err))
		}
		for _, r := range recs {
			lc.Examples = append(lc.Examples, llm.CorrectionExample{
				SourceLabel:     r.SourceLabel,
				SourceContext:   r.SourceContext,
				WrongExtraction: r.WrongExtraction,
				CorrectValue:    r.CorrectValue,
				CorrectField:    r.CorrectField,
			})
		}
	}
	return lc
}

// Dictionary is the YAML seed format for ImportDictionary.
type Dictionary struct {
	Synonyms []struct {
		Label string `yaml:"label"`
		Field string `yaml:"field"`
	} `yaml:"synonyms"`
	Aliases []struct {
		Alias string `yaml:"alias"`
		Skill string `yaml:"skill"`
	} `yaml:"aliases"`
	Skills []string `yaml:"skills"`
}

type ImportResult struct {
	Synonyms int `json:"synonyms"`
	Aliases  int `json:"aliases"`
	Skills   int `json:"skills"`
}

// ImportDictionary loads synonyms, aliases and canonical skills from YAML.
// Invalid entries are skipped; the first persistence error aborts.
func (s *Service) ImportDictionary(ctx context.Context, op common.Operator, r io.Reader) (ImportResult, error) {
	var res ImportResult
	var dict Dictionary
	if err := yaml.NewDecoder(r).Decode(&dict); err != nil && !errors.Is(err, io.EOF) {
		return res, common.NewAppError(common.CodeInvalidPayload, "parse dictionary", err)
	}

	for _, syn := range dict.Synonyms {
		err := s.AddFieldSynonym(ctx, op, syn.Label, syn.Field)
		switch {
		case err == nil:
			res.Synonyms++
		case common.HasCode(err, common.CodeInvalidPayload):
			s.log.Warn("feedback.import.synonym_skipped", zap.String("label", syn.Label), zap.Error(err))
		default:
			return res, err
		}
	}
	for _, a := range dict.Aliases {
		err := s.AddSkillAlias(ctx, op, a.Alias, a.Skill)
		switch {
		case err == nil:
			res.Aliases++
		case common.HasCode(err, common.CodeInvalidPayload):
			s.log.Warn("feedback.import.alias_skipped", zap.String("alias", a.Alias), zap.Error(err))
		default:
			return res, err
		}
	}
	if len(dict.Skills) > 0 {
		if s.skills == nil {
			return res, common.NewAppError(common.CodeConfig, "no skill store configured", nil)
		}
		var names []string
		for _, sk := range dict.Skills {
			if sk = s.clean(sk); sk != "" {
				names = append(names, sk)
			}
		}
		if err := s.skills.AddCanonical(ctx, names...); err != nil {
			return res, common.NewAppError(common.CodePersistenceFailed, "store skills", err)
		}
		res.Skills = len(names)
	}
	s.log.Info("feedback.import.done",
		zap.Int("synonyms", res.Synonyms), zap.Int("aliases", res.Aliases), zap.Int("skills", res.Skills))
	return res, nil
}
