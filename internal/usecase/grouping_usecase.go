package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/similarity"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// matchSearchLimit — сколько кандидатов запрашивается у корпуса при поиске
// существующей группы для нового изображения. Решение принимается по лучшему
// совпадению, остальные нужны только на случай совпадений без группы.
const matchSearchLimit = 5

// GroupingUseCase реализует группировку изображений: векторизация, поиск
// существующих групп в корпусе тенанта, кластеризация остатка в новые группы
// и транзакционная запись групп вместе с outbox-событиями.
type GroupingUseCase struct {
	groupRepo  GroupRepository
	corpusRepo CorpusRepository
	imageRepo  ImageRepository
	outboxRepo OutboxRepository
	embedding  EmbeddingInfra
	vision     VisionInfra
	settings   *SettingsService
	dbPool     transaction.Transactional
	logger     logger.Logger
}

func NewGroupingUC(
	groupRepo GroupRepository,
	corpusRepo CorpusRepository,
	imageRepo ImageRepository,
	outboxRepo OutboxRepository,
	embedding EmbeddingInfra,
	vision VisionInfra,
	settings *SettingsService,
	dbPool transaction.Transactional,
	logger logger.Logger,
) *GroupingUseCase {
	return &GroupingUseCase{
		groupRepo:  groupRepo,
		corpusRepo: corpusRepo,
		imageRepo:  imageRepo,
		outboxRepo: outboxRepo,
		embedding:  embedding,
		vision:     vision,
		settings:   settings,
		dbPool:     dbPool,
		logger:     logger,
	}
}

// resolvedImage — изображение с байтами. inlined помечает байты, переданные
// прямо в запросе: такие изображения ещё не лежат в объектном хранилище.
type resolvedImage struct {
	ID      string
	Data    []byte
	inlined bool
}

// groupAppend — решение о добавлении изображения в существующую группу.
type groupAppend struct {
	imageID string
	groupID string
}

// GroupImages группирует набор изображений одного тенанта. Ошибки отдельных
// изображений (битые байты, сбой векторизации) не валят запрос: такие
// изображения попадают в список Errors, остальные обрабатываются дальше.
func (g *GroupingUseCase) GroupImages(ctx context.Context, req *GroupImagesReq) (*GroupImagesRes, error) {
	const op = "GroupingUseCase.GroupImages"

	var err error
	err = g.validateRequest(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	settings := g.settings.ForTenant(ctx, req.TenantID)

	res := NewGroupImagesRes(
		make([]domain.ProductGroup, 0),
		make([]string, 0),
		make([]ImageError, 0),
	)

	// Загрузка байтов из объектного хранилища для изображений, переданных ключом
	resolved := g.resolveImages(ctx, req.Images, res)
	if len(resolved) == 0 {
		return res, nil
	}

	// Векторизация: частичные сбои возвращаются по отдельным изображениям
	embRes, err := g.generateEmbeddings(ctx, req.TenantID, settings.ModelID, resolved)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	res.Errors = append(res.Errors, embRes.Errors...)

	engine := similarity.NewEngine(settings.Thresholds)

	// Изображения, совпавшие с существующей группой, добавляются в неё;
	// остальные кластеризуются между собой
	appends, leftovers := g.matchExistingGroups(ctx, req.TenantID, engine, resolved, embRes.Embeddings)

	clusterRes := engine.Cluster(leftovers, g.scoreFunc(ctx, settings, resolved))
	for _, ie := range clusterRes.Errors {
		res.Errors = append(res.Errors, NewImageError(ie.ImageID, ie.Reason))
	}
	res.Ungrouped = clusterRes.Ungrouped

	// Группы и outbox-события пишутся в одной транзакции
	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, g.dbPool)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	groupIDs := make(map[string]string, len(appends))

	for _, a := range appends {
		group, appendErr := g.appendToGroup(ctx, req.TenantID, a)
		if appendErr != nil {
			err = appendErr
			return nil, e.Wrap(op, err)
		}
		groupIDs[a.imageID] = a.groupID
		if group != nil {
			res.Groups = append(res.Groups, *group)
		}
	}

	for _, cluster := range clusterRes.Clusters {
		group := domain.NewProductGroup(req.TenantID, cluster.SeedImageID, cluster.MemberImageIDs, cluster.Confidence)

		created, createErr := g.groupRepo.Create(ctx, group)
		if createErr != nil {
			err = createErr
			return nil, e.Wrap(op, err)
		}

		if eventErr := g.createGroupEvent(ctx, OutboxEventGroupCreated, created); eventErr != nil {
			err = eventErr
			return nil, e.Wrap(op, err)
		}

		for _, memberID := range created.MemberImageIDs {
			groupIDs[memberID] = created.ID
		}
		res.Groups = append(res.Groups, *created)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Векторы сохраняются в корпус после коммита: потеря upsert-а хуже
	// потерянной группы, но повторная отправка изображения её восстановит
	if upsertErr := g.upsertCorpus(ctx, embRes.Embeddings, groupIDs); upsertErr != nil {
		g.logger.Warnf("Failed to upsert listing vectors. tenant_id: %s, error: %v",
			req.TenantID, e.Wrap(op, upsertErr))
	}

	// Байты, пришедшие прямо в запросе, уходят в объектное хранилище: следующие
	// запросы смогут ссылаться на изображение ключом
	g.persistInlinedImages(ctx, req.TenantID, resolved)

	return res, nil
}

// persistInlinedImages сохраняет в объектное хранилище изображения, переданные
// байтами. Сбой загрузки только логируется: группы уже закоммичены.
func (g *GroupingUseCase) persistInlinedImages(ctx context.Context, tenantID string, resolved []resolvedImage) {
	const op = "GroupingUseCase.persistInlinedImages"

	for _, img := range resolved {
		if !img.inlined {
			continue
		}

		key := fmt.Sprintf("%s/%s", tenantID, img.ID)
		if err := g.imageRepo.Upload(ctx, domain.NewImage(img.ID, key, img.Data)); err != nil {
			g.logger.Warnf("Failed to persist image to object storage. image_id: %s, key: %s, error: %v",
				img.ID, key, e.Wrap(op, err))
		}
	}
}

// corpusPageLimits ограничивают размер страницы при обходе корпуса.
const (
	defaultCorpusPageLimit = 100
	maxCorpusPageLimit     = 1000
)

// ListCorpus постранично обходит корпус тенанта: каким изображениям какие
// группы назначены. Используется окружающим сервисом для аудита и миграций.
func (g *GroupingUseCase) ListCorpus(ctx context.Context, req *CorpusPageReq) (*CorpusPage, error) {
	const op = "GroupingUseCase.ListCorpus"

	if req.TenantID == "" {
		return nil, e.Wrap(op, e.ErrTenantRequired)
	}

	if req.Limit <= 0 {
		req.Limit = defaultCorpusPageLimit
	}
	if req.Limit > maxCorpusPageLimit {
		req.Limit = maxCorpusPageLimit
	}

	page, err := g.corpusRepo.ListListings(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return page, nil
}

func (g *GroupingUseCase) validateRequest(req *GroupImagesReq) error {
	if req.TenantID == "" {
		return e.ErrTenantRequired
	}

	if len(req.Images) == 0 {
		return e.ErrNoImages
	}

	seen := make(map[string]bool, len(req.Images))
	for _, img := range req.Images {
		if img.ID == "" {
			return e.Validation("image id is required")
		}
		if seen[img.ID] {
			return e.ErrDuplicateImageID
		}
		seen[img.ID] = true

		if len(img.Data) == 0 && img.ObjectKey == "" {
			return e.Validation("image must carry bytes or an object key")
		}
	}

	return nil
}

// resolveImages возвращает изображения с байтами, подгружая переданные ключом
// из объектного хранилища. Сбой загрузки выбрасывает изображение в Errors.
func (g *GroupingUseCase) resolveImages(ctx context.Context, images []InputImage, res *GroupImagesRes) []resolvedImage {
	const op = "GroupingUseCase.resolveImages"

	resolved := make([]resolvedImage, 0, len(images))

	for _, img := range images {
		data := img.Data
		inlined := len(data) > 0
		if !inlined {
			fetched, err := g.imageRepo.Fetch(ctx, img.ObjectKey)
			if err != nil {
				g.logger.Warnf("Failed to fetch image from object storage. image_id: %s, key: %s, error: %v",
					img.ID, img.ObjectKey, e.Wrap(op, err))
				res.Errors = append(res.Errors, NewImageError(img.ID, "object storage fetch failed"))
				continue
			}
			data = fetched
		}

		resolved = append(resolved, resolvedImage{ID: img.ID, Data: data, inlined: inlined})
	}

	return resolved
}

func (g *GroupingUseCase) generateEmbeddings(ctx context.Context, tenantID, modelID string,
	resolved []resolvedImage) (*GenerateEmbeddingsRes, error) {
	inputs := make([]InputImage, 0, len(resolved))
	for _, img := range resolved {
		inputs = append(inputs, InputImage{ID: img.ID, Data: img.Data})
	}

	return g.embedding.Generate(ctx, NewGenerateEmbeddingsReq(tenantID, modelID, inputs))
}

// matchExistingGroups ищет для каждого вектора лучшее совпадение в корпусе
// тенанта. Совпадение уровня same_product с сохранённой группой добавляет
// изображение в эту группу, остальные изображения уходят в кластеризацию.
// Сбой поиска деградирует до кластеризации без корпуса.
func (g *GroupingUseCase) matchExistingGroups(ctx context.Context, tenantID string,
	engine *similarity.Engine, resolved []resolvedImage,
	embeddings map[string]domain.EmbeddingVector) ([]groupAppend, []similarity.ClusterItem) {
	const op = "GroupingUseCase.matchExistingGroups"

	appends := make([]groupAppend, 0)
	leftovers := make([]similarity.ClusterItem, 0, len(resolved))

	for _, img := range resolved {
		emb, ok := embeddings[img.ID]
		if !ok {
			continue // сбой векторизации уже отражён в Errors
		}

		item := similarity.ClusterItem{ImageID: img.ID, Vector: emb.Vector}

		matches, err := g.corpusRepo.SearchListings(ctx, &CorpusSearchReq{
			TenantID:       tenantID,
			Vector:         emb.Vector,
			Limit:          matchSearchLimit,
			MinScore:       engine.Thresholds().SameProduct,
			ExcludeImageID: img.ID,
		})
		if err != nil {
			g.logger.Warnf("Corpus search failed, image goes to clustering. image_id: %s, error: %v",
				img.ID, e.Wrap(op, err))
			leftovers = append(leftovers, item)
			continue
		}

		appended := false
		for _, m := range matches {
			if m.GroupID == "" {
				continue
			}
			if engine.Classify(m.Score) != domain.TierSameProduct {
				break // совпадения отсортированы по убыванию
			}
			appends = append(appends, groupAppend{imageID: img.ID, groupID: m.GroupID})
			appended = true
			break
		}

		if !appended {
			leftovers = append(leftovers, item)
		}
	}

	return appends, leftovers
}

// scoreFunc возвращает функцию схожести для кластеризации: мультисигнальную
// оценку при включённом флаге тенанта, иначе nil (чистый косинус).
func (g *GroupingUseCase) scoreFunc(ctx context.Context, settings *domain.TenantSettings,
	resolved []resolvedImage) similarity.ScoreFunc {
	const op = "GroupingUseCase.scoreFunc"

	if !settings.MultiSignalEnabled {
		return nil
	}

	scorer, err := similarity.NewMultiSignalScorer(settings.SignalWeights)
	if err != nil {
		g.logger.Warnf("Invalid signal weights, falling back to cosine clustering. tenant_id: %s, error: %v",
			settings.TenantID, e.Wrap(op, err))
		return nil
	}

	// Характеристики и метки считаются один раз на изображение
	stats := make(map[string]*similarity.ImageStats, len(resolved))
	labels := make(map[string][]domain.ImageLabel, len(resolved))
	for _, img := range resolved {
		st, statErr := similarity.ComputeImageStats(img.Data)
		if statErr != nil {
			g.logger.Warnf("Failed to compute image stats, signals degrade to neutral. image_id: %s, error: %v",
				img.ID, e.Wrap(op, statErr))
			st = nil
		}
		stats[img.ID] = st
		labels[img.ID] = g.vision.DetectLabels(ctx, settings, img.Data)
	}

	return func(a, b similarity.ClusterItem) (float64, error) {
		return scorer.Score(stats[a.ImageID], stats[b.ImageID], labels[a.ImageID], labels[b.ImageID]), nil
	}
}

// appendToGroup атомарно добавляет изображение в существующую группу
// и создаёт событие об обновлении. Повторное добавление не является ошибкой.
func (g *GroupingUseCase) appendToGroup(ctx context.Context, tenantID string, a groupAppend) (*domain.ProductGroup, error) {
	const op = "GroupingUseCase.appendToGroup"

	added, err := g.groupRepo.AppendMember(ctx, tenantID, a.groupID, a.imageID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	group, err := g.groupRepo.GetByID(ctx, tenantID, a.groupID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if added {
		if err := g.createGroupEvent(ctx, OutboxEventGroupUpdated, group); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	return group, nil
}

// createGroupEvent кладёт событие о группе в outbox той же транзакцией,
// что и изменение группы. Публикацию в брокер выполняет outbox-воркер.
func (g *GroupingUseCase) createGroupEvent(ctx context.Context, eventType OutboxEventType, group *domain.ProductGroup) error {
	const op = "GroupingUseCase.createGroupEvent"

	eventID := uuid.NewString()

	payload, err := json.Marshal(GroupEventPayload{
		EventID:        eventID,
		EventType:      string(eventType),
		TenantID:       group.TenantID,
		GroupID:        group.ID,
		PrimaryImageID: group.PrimaryImageID,
		MemberImageIDs: group.MemberImageIDs,
		Confidence:     group.Confidence,
		EventTimestamp: time.Now().UTC().Unix(),
	})
	if err != nil {
		return e.Wrap(op, err)
	}

	_, err = g.outboxRepo.Create(ctx, NewOutboxEvent(eventID, eventType, group.TenantID, group.ID, payload))
	if err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

func (g *GroupingUseCase) upsertCorpus(ctx context.Context,
	embeddings map[string]domain.EmbeddingVector, groupIDs map[string]string) error {
	if len(embeddings) == 0 {
		return nil
	}

	vectors := make([]domain.EmbeddingVector, 0, len(embeddings))
	for _, emb := range embeddings {
		vectors = append(vectors, emb)
	}

	return g.corpusRepo.UpsertListings(ctx, vectors, groupIDs)
}
