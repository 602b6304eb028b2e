package service

import (
	"github.com/promptweaver/backend/internal/model"
	"gorm.io/gorm"
)

// InitSystemDefaultTemplate 初始化系统默认模板（statistics 流程使用）
// 已存在时跳过
func InitSystemDefaultTemplate(db *gorm.DB) error {
	var count int64
	db.Model(&model.Template{}).Where("kind = ?", model.TemplateKindSystemDefault).Count(&count)
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		template := &model.Template{
			Name:        "Relatório estatístico",
			Description: "Modelo padrão do sistema para o fluxo de estatísticas",
			Kind:        model.TemplateKindSystemDefault,
			Version:     1,
			CreatedBy:   "system",
			Sections: model.SectionList{
				{Key: 10, Content: "Você é um analista de atendimento. Gere um relatório estatístico das conversas do período, destacando volume de atendimentos, temas mais frequentes e taxa de resolução."},
				{Key: 20, Content: "Apresente os números em tópicos curtos e objetivos, seguidos de uma síntese interpretativa de no máximo dois parágrafos."},
			},
		}
		return tx.Create(template).Error
	})
}
