package collection

import (
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/user/arthub/internal/db"
)

func decode(doc db.Doc, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(doc))
}

func encodeSaved(item db.SavedItem) db.Doc {
	return db.Doc{
		"id":        item.ID,
		"title":     item.Title,
		"artist":    item.Artist,
		"imageUrl":  item.ImageURL,
		"source":    item.Source,
		"sourceUrl": item.SourceURL,
		"key":       item.Key,
		"savedAt":   item.SavedAt.UTC().Format(time.RFC3339Nano),
	}
}

func encodeFolder(f db.Folder) db.Doc {
	images := f.Images
	if images == nil {
		images = []string{}
	}
	return db.Doc{
		"id":        f.ID,
		"name":      f.Name,
		"slug":      f.Slug,
		"images":    images,
		"createdAt": f.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeSaved(docs []db.Document) (map[string]db.SavedItem, error) {
	items := make(map[string]db.SavedItem, len(docs))
	for _, d := range docs {
		var item db.SavedItem
		if err := decode(d.Data, &item); err != nil {
			return nil, err
		}
		if item.Key == "" {
			item.Key = d.ID
		}
		items[item.Key] = item
	}
	return items, nil
}

func decodeFolders(docs []db.Document) ([]db.Folder, error) {
	folders := make([]db.Folder, 0, len(docs))
	for _, d := range docs {
		var f db.Folder
		if err := decode(d.Data, &f); err != nil {
			return nil, err
		}
		if f.ID == "" {
			f.ID = d.ID
		}
		if f.Images == nil {
			f.Images = []string{}
		}
		folders = append(folders, f)
	}
	sortFolders(folders)
	return folders, nil
}

func sortFolders(folders []db.Folder) {
	sort.SliceStable(folders, func(i, j int) bool {
		if !folders[i].CreatedAt.Equal(folders[j].CreatedAt) {
			return folders[i].CreatedAt.Before(folders[j].CreatedAt)
		}
		return folders[i].Name < folders[j].Name
	})
}

// newestFirst orders saved items by savedAt descending, key ascending on ties.
func newestFirst(items map[string]db.SavedItem) []db.SavedItem {
	out := make([]db.SavedItem, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}
