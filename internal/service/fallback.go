package service

import (
	"fmt"

	"github.com/user/movie-explorer/internal/model"
)

const (
	placeholderDirectorBio = "Placeholder director"
	placeholderActorBio    = "Placeholder actor"
)

// PlaceholderDirector 由 ml_id 推导的占位导演，同一 ml_id 每次结果相同
func PlaceholderDirector(mlID int) model.PersonRef {
	bio := placeholderDirectorBio
	return model.PersonRef{
		Name: fmt.Sprintf("Director_%03d", mod1000(mlID*17+42)),
		Bio:  &bio,
	}
}

// PlaceholderActors 由 ml_id 推导的 n 位占位演员
func PlaceholderActors(mlID, n int) []model.PersonRef {
	refs := make([]model.PersonRef, 0, n)
	for i := 0; i < n; i++ {
		bio := placeholderActorBio
		refs = append(refs, model.PersonRef{
			Name: fmt.Sprintf("Actor_%03d", mod1000(mlID*23+i*13)),
			Bio:  &bio,
		})
	}
	return refs
}

// Description TMDb 简介优先，否则按年份生成
func Description(overview string, year *int) string {
	if overview != "" {
		return overview
	}
	if year != nil {
		return fmt.Sprintf("A %d film", *year)
	}
	return "A classic film"
}

func mod1000(v int) int {
	v %= 1000
	if v < 0 {
		v += 1000
	}
	return v
}
