package model

import "github.com/flemzord/ephemera/internal/docstore"

// Post is user-authored content. Hashtags and MentionedUserIDs are derived
// from TextContent by the metadata extractor.
type Post struct {
	ID               string
	TextContent      string
	AuthorID         string
	Hashtags         []string
	MentionedUserIDs []string
}

// PostFromData decodes raw post data delivered by a creation trigger.
func PostFromData(id string, data map[string]any) (Post, error) {
	return PostFromDocument(docstore.Document{
		Ref:  docstore.Ref{Collection: CollectionPosts, ID: id},
		Data: data,
	})
}

// PostFromDocument decodes a posts document.
func PostFromDocument(doc docstore.Document) (Post, error) {
	var (
		p   = Post{ID: doc.Ref.ID}
		err error
	)
	if p.TextContent, err = optionalString(doc, FieldTextContent); err != nil {
		return Post{}, err
	}
	if p.AuthorID, err = optionalString(doc, FieldAuthorID); err != nil {
		return Post{}, err
	}
	if p.Hashtags, err = optionalStrings(doc, FieldHashtags); err != nil {
		return Post{}, err
	}
	if p.MentionedUserIDs, err = optionalStrings(doc, FieldMentionedUserIDs); err != nil {
		return Post{}, err
	}
	return p, nil
}

// Data encodes the post for storage. Empty derived fields are omitted.
func (p Post) Data() map[string]any {
	data := map[string]any{
		FieldTextContent: p.TextContent,
		FieldAuthorID:    p.AuthorID,
	}
	if len(p.Hashtags) > 0 {
		data[FieldHashtags] = stringsToAny(p.Hashtags)
	}
	if len(p.MentionedUserIDs) > 0 {
		data[FieldMentionedUserIDs] = stringsToAny(p.MentionedUserIDs)
	}
	return data
}
