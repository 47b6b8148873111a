// markerd
// Copyright (c) 2026 The markerd Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of markerd.
//
// markerd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// markerd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with markerd.  If not, see <http://www.gnu.org/licenses/>.

package methods

import (
	"context"
	"sort"

	"github.com/markertools/markerd/pkg/api/models"
	"github.com/markertools/markerd/pkg/api/models/requests"
	"github.com/markertools/markerd/pkg/api/validation"
	"github.com/markertools/markerd/pkg/markers/cache"
	"github.com/rs/zerolog/log"
)

func HandleGetSections(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received sections request")

	sections, err := env.Engine.Sections(context.Background())
	if err != nil {
		return nil, err
	}

	resp := models.SectionsResponse{Sections: make([]models.SectionResponse, 0, len(sections))}
	for _, s := range sections {
		sectionType := "movie"
		if s.Type == 2 {
			sectionType = "show"
		}
		resp.Sections = append(resp.Sections, models.SectionResponse{
			ID:   s.ID,
			Name: s.Name,
			Type: sectionType,
		})
	}
	return resp, nil
}

func HandleGetSection(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received section items request")

	var params models.IDParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	items, err := env.Engine.SectionItems(context.Background(), params.ID)
	if err != nil {
		return nil, err
	}
	return models.ItemsResponse{Items: items}, nil
}

func HandleGetSeasons(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received seasons request")

	var params models.IDParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	items, err := env.Engine.Seasons(context.Background(), params.ID)
	if err != nil {
		return nil, err
	}
	return models.ItemsResponse{Items: items}, nil
}

func HandleGetEpisodes(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received episodes request")

	var params models.IDParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	items, err := env.Engine.Episodes(context.Background(), params.ID)
	if err != nil {
		return nil, err
	}
	return models.ItemsResponse{Items: items}, nil
}

func HandleGetStats(env requests.RequestEnv) (any, error) {
	log.Debug().Msg("received stats request")

	var params models.IDParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	breakdown, fromCache, err := env.Engine.SectionStats(context.Background(), params.ID)
	if err != nil {
		return nil, err
	}
	return statsResponse(breakdown, fromCache), nil
}

func statsResponse(b *cache.Breakdown, fromCache bool) models.StatsResponse {
	buckets := make([]models.StatsBucket, 0, b.Buckets())
	for bucket, items := range b.BucketCounts() {
		buckets = append(buckets, models.StatsBucket{
			Intros:  bucket.Intros(),
			Credits: bucket.Credits(),
			Items:   items,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Intros != buckets[j].Intros {
			return buckets[i].Intros < buckets[j].Intros
		}
		return buckets[i].Credits < buckets[j].Credits
	})

	return models.StatsResponse{
		Buckets:          buckets,
		ItemCount:        b.ItemCount(),
		ItemsWithMarkers: b.ItemsWithMarkers(),
		ItemsWithIntros:  b.ItemsWithIntros(),
		ItemsWithCredits: b.ItemsWithCredits(),
		TotalIntros:      b.TotalIntros(),
		TotalCredits:     b.TotalCredits(),
		TotalCommercials: b.TotalCommercials(),
		TotalMarkers:     b.TotalMarkers(),
		FromCache:        fromCache,
	}
}
