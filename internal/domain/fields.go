package domain

// field is one tracked attribute of a Post: its index attribute name and an
// equality check between two copies.
type field struct {
	name  string
	equal func(a, b *Post) bool
}

// comparisonFields is the declared list of every persisted attribute. The index
// snapshot requests exactly these attributes and Equal checks all of them.
var comparisonFields = []field{
	{"id", func(a, b *Post) bool { return a.ID == b.ID }},
	{"type", func(a, b *Post) bool { return a.Type == b.Type }},
	{"publicId", func(a, b *Post) bool { return a.PublicID == b.PublicID }},
	{"userId", func(a, b *Post) bool { return a.UserID == b.UserID }},
	{"username", func(a, b *Post) bool { return a.Username == b.Username }},
	{"userGhostId", func(a, b *Post) bool { return equalPtr(a.UserGhostID, b.UserGhostID) }},
	{"userGroup", func(a, b *Post) bool { return a.UserGroup == b.UserGroup }},
	{"userDeleted", func(a, b *Post) bool { return a.UserDeleted == b.UserDeleted }},
	{"isPinned", func(a, b *Post) bool { return a.IsPinned == b.IsPinned }},
	{"isPinnedSite", func(a, b *Post) bool { return a.IsPinnedSite == b.IsPinnedSite }},
	{"communityId", func(a, b *Post) bool { return a.CommunityID == b.CommunityID }},
	{"communityName", func(a, b *Post) bool { return a.CommunityName == b.CommunityName }},
	{"communityProPic", func(a, b *Post) bool { return a.CommunityProPic.Equal(b.CommunityProPic) }},
	{"communityBannerImage", func(a, b *Post) bool { return a.CommunityBannerImage.Equal(b.CommunityBannerImage) }},
	{"title", func(a, b *Post) bool { return a.Title == b.Title }},
	{"body", func(a, b *Post) bool { return equalPtr(a.Body, b.Body) }},
	{"image", func(a, b *Post) bool { return a.Image.Equal(b.Image) }},
	{"images", func(a, b *Post) bool { return a.Images.Equal(b.Images) }},
	{"link", func(a, b *Post) bool { return a.Link.Equal(b.Link) }},
	{"locked", func(a, b *Post) bool { return a.Locked == b.Locked }},
	{"lockedBy", func(a, b *Post) bool { return equalPtr(a.LockedBy, b.LockedBy) }},
	{"lockedByGroup", func(a, b *Post) bool { return equalPtr(a.LockedByGroup, b.LockedByGroup) }},
	{"lockedAt", func(a, b *Post) bool { return equalPtr(a.LockedAt, b.LockedAt) }},
	{"upvotes", func(a, b *Post) bool { return a.Upvotes == b.Upvotes }},
	{"downvotes", func(a, b *Post) bool { return a.Downvotes == b.Downvotes }},
	{"hotness", func(a, b *Post) bool { return a.Hotness == b.Hotness }},
	{"createdAt", func(a, b *Post) bool { return a.CreatedAt == b.CreatedAt }},
	{"editedAt", func(a, b *Post) bool { return equalPtr(a.EditedAt, b.EditedAt) }},
	{"lastActivityAt", func(a, b *Post) bool { return a.LastActivityAt == b.LastActivityAt }},
	{"deleted", func(a, b *Post) bool { return a.Deleted == b.Deleted }},
	{"deletedAt", func(a, b *Post) bool { return equalPtr(a.DeletedAt, b.DeletedAt) }},
	{"deletedBy", func(a, b *Post) bool { return equalPtr(a.DeletedBy, b.DeletedBy) }},
	{"deletedAs", func(a, b *Post) bool { return equalPtr(a.DeletedAs, b.DeletedAs) }},
	{"deletedContent", func(a, b *Post) bool { return a.DeletedContent == b.DeletedContent }},
	{"deletedContentAs", func(a, b *Post) bool { return equalPtr(a.DeletedContentAs, b.DeletedContentAs) }},
	{"noComments", func(a, b *Post) bool { return a.NoComments == b.NoComments }},
	{"comments", func(a, b *Post) bool { return a.Comments.Equal(b.Comments) }},
	{"commentsNext", func(a, b *Post) bool { return equalPtr(a.CommentsNext, b.CommentsNext) }},
}

// ComparisonFields returns the index attribute names Equal inspects.
func ComparisonFields() []string {
	names := make([]string, len(comparisonFields))
	for i, f := range comparisonFields {
		names[i] = f.name
	}
	return names
}

// Equal reports whether every tracked field of a and b matches exactly.
func Equal(a, b *Post) bool {
	for _, f := range comparisonFields {
		if !f.equal(a, b) {
			return false
		}
	}
	return true
}

// DiffFields lists the tracked fields on which a and b disagree.
func DiffFields(a, b *Post) []string {
	var out []string
	for _, f := range comparisonFields {
		if !f.equal(a, b) {
			out = append(out, f.name)
		}
	}
	return out
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
