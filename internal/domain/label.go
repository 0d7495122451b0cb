package domain

// ImageLabel — метка изображения от внешнего сервиса распознавания.
type ImageLabel struct {
	Name       string
	Confidence float64
}

// LabelNames возвращает имена меток как множество для вычисления пересечений.
func LabelNames(labels []ImageLabel) map[string]struct{} {
	names := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		names[l.Name] = struct{}{}
	}
	return names
}
