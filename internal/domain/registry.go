package domain

import "fmt"

// RegistryRepository is one named image repository, one per container role.
// Tags are immutable: a deploy only ever references new tags, it never
// mutates an existing one.
type RegistryRepository struct {
	Project      string `json:"project" yaml:"project"`
	Region       string `json:"region" yaml:"region"`
	RepositoryID string `json:"repository_id" yaml:"repository_id"`
}

// ImageRef renders the full image reference for a named image at a tag:
// {region}/{project}/{repository-id}/{image-name}:{tag}.
func (r *RegistryRepository) ImageRef(imageName, tag string) string {
	return fmt.Sprintf("%s/%s/%s/%s:%s", r.Region, r.Project, r.RepositoryID, imageName, tag)
}

func (r *RegistryRepository) Validate() error {
	if r.Project == "" || r.Region == "" {
		return fmt.Errorf("%w: repository requires project and region", ErrInvalidInput)
	}
	return ValidateResourceName(r.RepositoryID)
}
