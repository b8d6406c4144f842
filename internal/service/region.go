package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/banksampah-system/internal/wilayah"
)

// Provinces возвращает список провинций. При недоступности справочника
// возвращается пустой список, чтобы форма адреса оставалась рабочей.
func (s *Service) Provinces(ctx context.Context) []wilayah.Region {
	return s.lookup(ctx, "provinces", "", func(ctx context.Context, r RegionLookup) ([]wilayah.Region, error) {
		return r.Provinces(ctx)
	})
}

// Regencies возвращает города и округа провинции.
func (s *Service) Regencies(ctx context.Context, provinceID string) []wilayah.Region {
	return s.lookup(ctx, "regencies", provinceID, func(ctx context.Context, r RegionLookup) ([]wilayah.Region, error) {
		return r.Regencies(ctx, provinceID)
	})
}

// Districts возвращает районы города или округа.
func (s *Service) Districts(ctx context.Context, regencyID string) []wilayah.Region {
	return s.lookup(ctx, "districts", regencyID, func(ctx context.Context, r RegionLookup) ([]wilayah.Region, error) {
		return r.Districts(ctx, regencyID)
	})
}

func (s *Service) lookup(
	ctx context.Context,
	level, parentID string,
	fetch func(ctx context.Context, r RegionLookup) ([]wilayah.Region, error),
) []wilayah.Region {
	if s.regions == nil {
		return []wilayah.Region{}
	}

	regions, err := fetch(ctx, s.regions)
	if err != nil {
		s.metrics.LookupFailure()
		s.logger.Warn("region lookup failed", zap.String("level", level), zap.String("parentID", parentID), zap.Error(err))
		return []wilayah.Region{}
	}
	if regions == nil {
		return []wilayah.Region{}
	}
	return regions
}
